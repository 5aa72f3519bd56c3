package quote

// AssetType identifies the class of a fetchable instrument. Each asset type
// is governed by exactly one market calendar.
type AssetType string

const (
	AssetPSX    AssetType = "psx"
	AssetCrypto AssetType = "crypto"
	AssetIndex  AssetType = "index"
)

// Market returns the market identifier whose trading calendar governs the
// asset type. Crypto trades around the clock and maps to the always-open
// market.
func (a AssetType) Market() string {
	switch a {
	case AssetPSX:
		return "PK"
	case AssetCrypto:
		return "CRYPTO"
	case AssetIndex:
		return "US"
	default:
		return ""
	}
}

// Valid reports whether the asset type is one of the supported classes.
func (a AssetType) Valid() bool {
	switch a {
	case AssetPSX, AssetCrypto, AssetIndex:
		return true
	}
	return false
}

// PricePoint is one daily bar for an instrument. Points are immutable once
// written to the persistence store; the engine only ever upserts by
// (Asset, Symbol, Day).
type PricePoint struct {
	Asset     AssetType `json:"asset"`
	Symbol    string    `json:"symbol"`
	Day       string    `json:"day"` // YYYY-MM-DD in the instrument's market timezone
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	ChangePct float64   `json:"change_pct"`
}
