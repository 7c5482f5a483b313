package models

import (
	"encoding/json"
	"math"
	"time"
)

// Tick source identifiers used during merging. Live data wins on key
// collision, so the merge stage inserts historical ticks first.
const (
	SourceHistorical = "historical"
	SourceLive       = "live"
)

// Tick represents a single observed trade for a symbol. Timestamps are
// event time in Unix milliseconds and may arrive out of order.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
	Source    string  `json:"-"`
}

// TickKey is the dedup identity of a tick within a symbol series. The
// upstream feed carries no trade ID, so two ticks with the same timestamp
// and price are treated as the same trade. Distinct trades at the same
// price inside one millisecond collapse to a single entry; this matches
// the upstream merge policy and is a known precision limitation.
type TickKey struct {
	Timestamp int64
	Price     float64
}

// Key returns the dedup identity of the tick.
func (t Tick) Key() TickKey {
	return TickKey{Timestamp: t.Timestamp, Price: t.Price}
}

// Valid reports whether the tick is well formed. Malformed ticks are
// dropped at the boundary, never surfaced as errors.
func (t Tick) Valid() bool {
	if t.Symbol == "" {
		return false
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return false
	}
	if math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) || t.Quantity < 0 {
		return false
	}
	return t.Timestamp > 0
}

// Time returns the tick's event time.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// RawTickBatch wraps a validated batch of live ticks on its way from the
// stream connection manager to the pipeline controller.
type RawTickBatch struct {
	BatchID     string    `json:"batch_id"`
	Symbol      string    `json:"symbol"`
	Ticks       []Tick    `json:"ticks"`
	RecordCount int       `json:"record_count"`
	ReceivedAt  time.Time `json:"received_at"`
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// WIRE /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Stream message types pushed by the backend.
const (
	StreamTypeTicks     = "ticks"
	StreamTypeAlert     = "alert"
	StreamTypeAnalytics = "analytics"
)

// WireTick mirrors a single tick as the backend serialises it on both the
// REST and the stream surface.
type WireTick struct {
	Symbol    string  `json:"symbol,omitempty"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
}

// StreamMessage is the envelope of every message delivered on the live
// socket. Tick payloads arrive batched (roughly ten ticks per message);
// alert and analytics payloads are forwarded opaquely.
type StreamMessage struct {
	Type    string          `json:"type"`
	Symbol  string          `json:"symbol,omitempty"`
	Ticks   []WireTick      `json:"ticks,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Tick converts a wire tick into the internal model, falling back to the
// envelope symbol when the entry carries none.
func (w WireTick) Tick(envelopeSymbol string) Tick {
	symbol := w.Symbol
	if symbol == "" {
		symbol = envelopeSymbol
	}
	return Tick{
		Symbol:    symbol,
		Price:     w.Price,
		Quantity:  w.Quantity,
		Timestamp: w.Timestamp,
		Source:    SourceLive,
	}
}
