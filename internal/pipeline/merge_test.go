package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tickflow/models"
)

func tick(ts int64, price, qty float64, source string) models.Tick {
	return models.Tick{Symbol: "BTC-USDT", Price: price, Quantity: qty, Timestamp: ts, Source: source}
}

func TestMergeLiveWinsOnCollision(t *testing.T) {
	historical := []models.Tick{
		tick(100, 10, 1, models.SourceHistorical),
		tick(200, 20, 1, models.SourceHistorical),
	}
	live := []models.Tick{
		tick(200, 20, 5, models.SourceLive),
		tick(300, 30, 1, models.SourceLive),
	}

	merged := Merge(nil, historical, live, "BTC-USDT", 500)

	require.Len(t, merged, 3)
	require.Equal(t, int64(200), merged[1].Timestamp)
	require.Equal(t, models.SourceLive, merged[1].Source)
	require.Equal(t, float64(5), merged[1].Quantity)
}

func TestMergeSortsOutOfOrderArrivals(t *testing.T) {
	live := []models.Tick{
		tick(300, 30, 1, models.SourceLive),
		tick(100, 10, 1, models.SourceLive),
		tick(200, 20, 1, models.SourceLive),
	}

	merged := Merge(nil, nil, live, "BTC-USDT", 500)

	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		require.LessOrEqual(t, merged[i-1].Timestamp, merged[i].Timestamp)
	}
}

func TestMergeIdempotent(t *testing.T) {
	historical := []models.Tick{
		tick(100, 10, 1, models.SourceHistorical),
		tick(200, 20, 2, models.SourceHistorical),
	}
	live := []models.Tick{tick(150, 15, 1, models.SourceLive)}

	once := Merge(nil, historical, live, "BTC-USDT", 500)
	twice := Merge(once, historical, live, "BTC-USDT", 500)

	require.Equal(t, once, twice)
}

func TestMergeDropsForeignAndInvalidTicks(t *testing.T) {
	live := []models.Tick{
		tick(100, 10, 1, models.SourceLive),
		{Symbol: "ETH-USDT", Price: 5, Quantity: 1, Timestamp: 110, Source: models.SourceLive},
		{Symbol: "BTC-USDT", Price: -1, Quantity: 1, Timestamp: 120, Source: models.SourceLive},
		{Symbol: "BTC-USDT", Price: 10, Quantity: 1, Timestamp: 0, Source: models.SourceLive},
	}

	merged := Merge(nil, nil, live, "BTC-USDT", 500)

	require.Len(t, merged, 1)
	require.Equal(t, int64(100), merged[0].Timestamp)
}

func TestMergeBoundsSeriesToTwiceWindow(t *testing.T) {
	window := 10
	live := make([]models.Tick, 0, 100)
	for i := 1; i <= 100; i++ {
		live = append(live, tick(int64(i*1000), float64(i), 1, models.SourceLive))
	}

	merged := Merge(nil, nil, live, "BTC-USDT", window)

	require.Len(t, merged, 2*window)
	// The newest ticks survive truncation.
	require.Equal(t, int64(100000), merged[len(merged)-1].Timestamp)
	require.Equal(t, int64(81000), merged[0].Timestamp)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := []models.Tick{tick(100, 10, 1, models.SourceLive)}
	historical := []models.Tick{tick(100, 10, 9, models.SourceHistorical)}

	snapshot := append([]models.Tick(nil), existing...)
	Merge(existing, historical, nil, "BTC-USDT", 500)

	require.Equal(t, snapshot, existing)
}
