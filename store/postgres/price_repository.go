package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/store"
)

// PriceRepository persists quote.PricePoint records inside PostgreSQL. The
// (asset_type, symbol, day) primary key plus ON CONFLICT upsert makes writes
// idempotent, so racing writers for one day cannot produce conflicting rows.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository wraps an existing *sql.DB connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

var _ store.Store = (*PriceRepository)(nil)

func (r *PriceRepository) ReadPoint(ctx context.Context, asset quote.AssetType, symbol, day string) (quote.PricePoint, error) {
	const query = `SELECT asset_type, symbol, day, open, high, low, close, volume, change_pct
                   FROM daily_prices WHERE asset_type = $1 AND symbol = $2 AND day = $3`
	row := r.db.QueryRowContext(ctx, query, asset, quote.NormalizeSymbol(symbol), day)
	return scanPoint(row)
}

func (r *PriceRepository) UpsertPoint(ctx context.Context, p quote.PricePoint) error {
	const query = `INSERT INTO daily_prices (asset_type, symbol, day, open, high, low, close, volume, change_pct)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
                   ON CONFLICT (asset_type, symbol, day) DO UPDATE SET
                       open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
                       close = EXCLUDED.close, volume = EXCLUDED.volume, change_pct = EXCLUDED.change_pct`
	_, err := r.db.ExecContext(ctx, query,
		p.Asset, quote.NormalizeSymbol(p.Symbol), p.Day,
		p.Open, p.High, p.Low, p.Close, p.Volume, p.ChangePct)
	if err != nil {
		return fmt.Errorf("postgres: upsert point: %w", err)
	}
	return nil
}

func (r *PriceRepository) ReadRange(ctx context.Context, asset quote.AssetType, symbol, start, end string) ([]quote.PricePoint, error) {
	query := `SELECT asset_type, symbol, day, open, high, low, close, volume, change_pct
              FROM daily_prices WHERE asset_type = $1 AND symbol = $2`
	args := []any{asset, quote.NormalizeSymbol(symbol)}
	if start != "" {
		args = append(args, start)
		query += fmt.Sprintf(" AND day >= $%d", len(args))
	}
	if end != "" {
		args = append(args, end)
		query += fmt.Sprintf(" AND day <= $%d", len(args))
	}
	query += " ORDER BY day ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: read range: %w", err)
	}
	defer rows.Close()

	var out []quote.PricePoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read range: %w", err)
	}
	return out, nil
}

func (r *PriceRepository) ReadLatest(ctx context.Context, asset quote.AssetType, symbol string) (quote.PricePoint, error) {
	const query = `SELECT asset_type, symbol, day, open, high, low, close, volume, change_pct
                   FROM daily_prices WHERE asset_type = $1 AND symbol = $2
                   ORDER BY day DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, asset, quote.NormalizeSymbol(symbol))
	return scanPoint(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(row rowScanner) (quote.PricePoint, error) {
	var p quote.PricePoint
	var day time.Time
	err := row.Scan(&p.Asset, &p.Symbol, &day,
		&p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.ChangePct)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.PricePoint{}, store.ErrNotFound
	}
	if err != nil {
		return quote.PricePoint{}, fmt.Errorf("postgres: scan point: %w", err)
	}
	p.Day = day.Format("2006-01-02")
	return p, nil
}
