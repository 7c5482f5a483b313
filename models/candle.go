package models

import (
	"fmt"
	"time"
)

// Timeframe is a fixed candle bucket width. Only the values the backend
// understands are accepted; anything else is a configuration error.
type Timeframe string

const (
	Timeframe1s  Timeframe = "1s"
	Timeframe5s  Timeframe = "5s"
	Timeframe15s Timeframe = "15s"
	Timeframe30s Timeframe = "30s"
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeWidths = map[Timeframe]time.Duration{
	Timeframe1s:  time.Second,
	Timeframe5s:  5 * time.Second,
	Timeframe15s: 15 * time.Second,
	Timeframe30s: 30 * time.Second,
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string against the supported set.
// Unknown values fail fast rather than silently defaulting.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeWidths[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bucket width of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeWidths[tf]
}

// Millis returns the bucket width in milliseconds, zero for an
// unvalidated timeframe.
func (tf Timeframe) Millis() int64 {
	return timeframeWidths[tf].Milliseconds()
}

// Candle is a derived OHLCV aggregate over one timeframe bucket. Candles
// are regenerated from a series snapshot and never mutated in place.
type Candle struct {
	Timestamp  int64   `json:"timestamp"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	TradeCount int     `json:"trade_count"`
}
