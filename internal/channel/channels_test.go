package channel

import (
	"context"
	"testing"
	"time"

	"tickflow/models"
)

func batch(id string) models.RawTickBatch {
	return models.RawTickBatch{
		BatchID:     id,
		Symbol:      "BTC-USDT",
		Ticks:       []models.Tick{{Symbol: "BTC-USDT", Price: 10, Quantity: 1, Timestamp: 1000}},
		RecordCount: 1,
		ReceivedAt:  time.Now(),
	}
}

func TestSendRawDelivers(t *testing.T) {
	c := NewChannels(2)
	defer c.Close()

	if !c.SendRaw(context.Background(), batch("b1")) {
		t.Fatalf("expected send to succeed")
	}

	got := <-c.Raw
	if got.BatchID != "b1" {
		t.Fatalf("expected batch b1, got %s", got.BatchID)
	}
	if c.GetStats().RawSent != 1 {
		t.Fatalf("expected 1 sent, got %d", c.GetStats().RawSent)
	}
}

func TestSendRawDropsWhenFull(t *testing.T) {
	c := NewChannels(1)
	defer c.Close()

	ctx := context.Background()
	if !c.SendRaw(ctx, batch("b1")) {
		t.Fatalf("first send should succeed")
	}
	if c.SendRaw(ctx, batch("b2")) {
		t.Fatalf("second send should drop on a full buffer")
	}

	stats := c.GetStats()
	if stats.RawSent != 1 || stats.RawDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendRawCancelledContext(t *testing.T) {
	c := NewChannels(0)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if c.SendRaw(ctx, batch("b1")) {
		t.Fatalf("send on cancelled context should fail")
	}
}
