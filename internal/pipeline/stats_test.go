package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tickflow/models"
)

func TestComputeLiveStatsZScoreZeroWhenFlat(t *testing.T) {
	series := []models.Tick{
		tick(100, 50, 1, models.SourceLive),
		tick(200, 50, 1, models.SourceLive),
		tick(300, 50, 1, models.SourceLive),
	}

	stats := ComputeLiveStats(series, 100)

	require.Zero(t, stats.ZScore)
	require.Equal(t, 3, stats.SampleCount)
	require.Equal(t, "BTC-USDT", stats.Symbol)
}

func TestComputeLiveStatsVWAP(t *testing.T) {
	series := []models.Tick{
		tick(100, 10, 1, models.SourceLive),
		tick(200, 20, 3, models.SourceLive),
	}

	stats := ComputeLiveStats(series, 100)

	// (10*1 + 20*3) / 4 = 17.5
	require.InDelta(t, 17.5, stats.VWAP, 1e-9)
}

func TestComputeLiveStatsVWAPZeroWithoutVolume(t *testing.T) {
	series := []models.Tick{
		tick(100, 10, 0, models.SourceLive),
		tick(200, 20, 0, models.SourceLive),
	}

	stats := ComputeLiveStats(series, 100)
	require.Zero(t, stats.VWAP)
}

func TestComputeLiveStatsMomentum(t *testing.T) {
	series := []models.Tick{
		tick(100, 100, 1, models.SourceLive),
		tick(200, 110, 1, models.SourceLive),
	}

	stats := ComputeLiveStats(series, 100)
	require.InDelta(t, 10, stats.Momentum, 1e-9)
}

func TestComputeLiveStatsWindowsLastN(t *testing.T) {
	series := make([]models.Tick, 0, 10)
	for i := 1; i <= 10; i++ {
		series = append(series, tick(int64(i*100), float64(i), 1, models.SourceLive))
	}

	stats := ComputeLiveStats(series, 4)

	require.Equal(t, 4, stats.SampleCount)
	// Window is ticks 7..10, so momentum runs from 7 to 10.
	require.InDelta(t, (10.0-7.0)/7.0*100, stats.Momentum, 1e-9)
}

func TestComputeLiveStatsEmptySeries(t *testing.T) {
	stats := ComputeLiveStats(nil, 100)

	require.Zero(t, stats.SampleCount)
	require.Zero(t, stats.ZScore)
	require.Zero(t, stats.VWAP)
	require.False(t, stats.ComputedAt.IsZero())
}

func TestComputeLiveStatsZScoreSign(t *testing.T) {
	series := []models.Tick{
		tick(100, 10, 1, models.SourceLive),
		tick(200, 10, 1, models.SourceLive),
		tick(300, 10, 1, models.SourceLive),
		tick(400, 16, 1, models.SourceLive),
	}

	stats := ComputeLiveStats(series, 100)
	require.Greater(t, stats.ZScore, 0.0)
}
