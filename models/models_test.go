package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestTickValid(t *testing.T) {
	base := Tick{Symbol: "BTC-USDT", Price: 100, Quantity: 1, Timestamp: 1700000000000}
	if !base.Valid() {
		t.Fatalf("expected base tick to be valid")
	}

	cases := []struct {
		name   string
		mutate func(*Tick)
	}{
		{"empty symbol", func(tk *Tick) { tk.Symbol = "" }},
		{"zero price", func(tk *Tick) { tk.Price = 0 }},
		{"negative price", func(tk *Tick) { tk.Price = -1 }},
		{"nan price", func(tk *Tick) { tk.Price = math.NaN() }},
		{"inf price", func(tk *Tick) { tk.Price = math.Inf(1) }},
		{"negative quantity", func(tk *Tick) { tk.Quantity = -0.5 }},
		{"nan quantity", func(tk *Tick) { tk.Quantity = math.NaN() }},
		{"zero timestamp", func(tk *Tick) { tk.Timestamp = 0 }},
	}
	for _, tc := range cases {
		tk := base
		tc.mutate(&tk)
		if tk.Valid() {
			t.Errorf("%s: expected invalid", tc.name)
		}
	}

	// Zero quantity is allowed; some venues report dust trades that way.
	tk := base
	tk.Quantity = 0
	if !tk.Valid() {
		t.Errorf("zero quantity should be valid")
	}
}

func TestTickKey(t *testing.T) {
	a := Tick{Symbol: "BTC-USDT", Price: 100.5, Quantity: 1, Timestamp: 200}
	b := Tick{Symbol: "BTC-USDT", Price: 100.5, Quantity: 7, Timestamp: 200}
	if a.Key() != b.Key() {
		t.Fatalf("ticks with same timestamp and price must share a key")
	}

	c := Tick{Symbol: "BTC-USDT", Price: 100.6, Quantity: 1, Timestamp: 200}
	if a.Key() == c.Key() {
		t.Fatalf("different price must yield a different key")
	}
}

func TestParseTimeframe(t *testing.T) {
	for _, s := range []string{"1s", "5s", "15s", "30s", "1m", "5m", "15m", "1h", "4h", "1d"} {
		tf, err := ParseTimeframe(s)
		if err != nil {
			t.Fatalf("ParseTimeframe(%q): %v", s, err)
		}
		if tf.Millis() <= 0 {
			t.Fatalf("ParseTimeframe(%q): non-positive width", s)
		}
	}

	for _, s := range []string{"", "2m", "1w", "60", "1M"} {
		if _, err := ParseTimeframe(s); err == nil {
			t.Errorf("ParseTimeframe(%q): expected error", s)
		}
	}
}

func TestStreamMessageObjectPayload(t *testing.T) {
	// Analytics and alert pushes carry JSON object payloads; the envelope
	// must accept them as-is rather than expecting base64.
	raw := []byte(`{"type":"analytics","symbol":"BTC-USDT","payload":{"correlation":0.42}}`)

	var msg StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal push message: %v", err)
	}
	if msg.Type != StreamTypeAnalytics {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	if !json.Valid(msg.Payload) {
		t.Fatalf("payload not preserved: %s", msg.Payload)
	}

	var payload struct {
		Correlation float64 `json:"correlation"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Correlation != 0.42 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestWireTickEnvelopeSymbol(t *testing.T) {
	w := WireTick{Price: 42, Quantity: 1, Timestamp: 100}
	tk := w.Tick("ETH-USDT")
	if tk.Symbol != "ETH-USDT" {
		t.Fatalf("expected envelope symbol fallback, got %q", tk.Symbol)
	}
	if tk.Source != SourceLive {
		t.Fatalf("expected live source, got %q", tk.Source)
	}

	w.Symbol = "BTC-USDT"
	if got := w.Tick("ETH-USDT").Symbol; got != "BTC-USDT" {
		t.Fatalf("expected own symbol to win, got %q", got)
	}
}
