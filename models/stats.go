package models

import "time"

// LiveStats holds rolling statistics over the most recent ticks of one
// symbol. It is a throttled cache with a freshness timestamp, recomputed
// on a fixed cadence rather than per tick.
type LiveStats struct {
	Symbol      string    `json:"symbol"`
	ZScore      float64   `json:"z_score"`
	VWAP        float64   `json:"vwap"`
	Momentum    float64   `json:"momentum"`
	SampleCount int       `json:"sample_count"`
	ComputedAt  time.Time `json:"computed_at"`
}
