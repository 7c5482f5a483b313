package models

import "encoding/json"

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// REST RESPONSES //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// TickHistory is the response of GET /api/ticks.
type TickHistory struct {
	Symbol string     `json:"symbol"`
	Count  int        `json:"count"`
	Ticks  []WireTick `json:"ticks"`
}

// SymbolInfo is one entry of GET /api/symbols.
type SymbolInfo struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// Alert is one entry of GET /api/alerts.
type Alert struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// TimeseriesPoint is one bucketed entry of GET /api/stats/timeseries.
type TimeseriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	ZScore    float64 `json:"z_score"`
	Volume    float64 `json:"volume"`
}

// Timeseries is the response of GET /api/stats/timeseries.
type Timeseries struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Points    []TimeseriesPoint `json:"points"`
}

// Analytics carries a backend-computed analytics document. The values are
// consumed opaquely and never recomputed locally.
type Analytics struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}
