package domain

// SpotBar is one per-minute spot candle close.
// Corresponds to spot_data table.
type SpotBar struct {
	Symbol      string  // e.g. BTCUSDT
	TimestampMs int64   // Unix timestamp in milliseconds
	Close       float64 // close price
	Volume      float64 // traded volume
}

// IVPoint is one implied-volatility aggregate sample.
// Corresponds to iv_agg table.
type IVPoint struct {
	Symbol      string
	TimestampMs int64
	IV30d       float64 // 30-day implied volatility level
	Skew30d     float64 // 30-day skew
}

// BasisPoint is one basis/funding aggregate sample.
// Corresponds to basis_agg table.
type BasisPoint struct {
	Symbol       string
	TimestampMs  int64
	BasisRel     float64 // (futures - spot) / spot
	FundingRate  float64
	OpenInterest float64
}
