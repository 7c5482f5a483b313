package store

import (
	"testing"

	"tickflow/models"
)

func seed(n int) []models.Tick {
	out := make([]models.Tick, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Tick{
			Symbol:    "BTC-USDT",
			Price:     float64(i),
			Quantity:  1,
			Timestamp: int64(i * 1000),
		})
	}
	return out
}

func TestUpdateAndLen(t *testing.T) {
	s := New(10)

	length := s.Update("BTC-USDT", func(existing []models.Tick) []models.Tick {
		if len(existing) != 0 {
			t.Fatalf("expected empty series on first update, got %d", len(existing))
		}
		return seed(3)
	})
	if length != 3 {
		t.Fatalf("expected length 3, got %d", length)
	}
	if s.Len("BTC-USDT") != 3 {
		t.Fatalf("expected stored length 3, got %d", s.Len("BTC-USDT"))
	}
}

func TestRecentBoundsToRollingWindow(t *testing.T) {
	s := New(5)
	s.Update("BTC-USDT", func([]models.Tick) []models.Tick { return seed(8) })

	recent := s.Recent("BTC-USDT")
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent ticks, got %d", len(recent))
	}
	if recent[0].Timestamp != 4000 {
		t.Fatalf("expected recent window to start at 4000, got %d", recent[0].Timestamp)
	}
	if len(s.Series("BTC-USDT")) != 8 {
		t.Fatalf("full series must keep all retained ticks")
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := New(10)
	s.Update("BTC-USDT", func([]models.Tick) []models.Tick { return seed(2) })

	snapshot := s.Recent("BTC-USDT")
	snapshot[0].Price = -99

	if s.Recent("BTC-USDT")[0].Price == -99 {
		t.Fatalf("mutating a snapshot must not affect the store")
	}
}

func TestSymbolsAndRelease(t *testing.T) {
	s := New(10)
	s.Update("BTC-USDT", func([]models.Tick) []models.Tick { return seed(1) })
	s.Update("ETH-USDT", func([]models.Tick) []models.Tick { return seed(1) })

	if len(s.Symbols()) != 2 {
		t.Fatalf("expected 2 symbols, got %v", s.Symbols())
	}

	s.Release("BTC-USDT")
	if s.Len("BTC-USDT") != 0 {
		t.Fatalf("expected released series to be empty")
	}
	if len(s.Symbols()) != 1 {
		t.Fatalf("expected 1 symbol after release, got %v", s.Symbols())
	}
}

func TestUpdateNilLeavesNoEntry(t *testing.T) {
	s := New(10)

	if got := s.Update("BTC-USDT", func(existing []models.Tick) []models.Tick { return existing }); got != 0 {
		t.Fatalf("expected length 0, got %d", got)
	}
	if len(s.Symbols()) != 0 {
		t.Fatalf("nil result must not create an entry, got %v", s.Symbols())
	}
}

func TestNewDefaultsWindow(t *testing.T) {
	s := New(0)
	if s.RollingWindow() != 500 {
		t.Fatalf("expected default rolling window 500, got %d", s.RollingWindow())
	}
}
