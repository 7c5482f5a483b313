package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tickflow/models"
)

func TestResampleBucketsByTimeframe(t *testing.T) {
	series := []models.Tick{
		tick(1000, 10, 1, models.SourceLive),
		tick(1500, 12, 2, models.SourceLive),
		tick(1900, 8, 1, models.SourceLive),
		tick(2100, 9, 3, models.SourceLive),
	}

	candles, err := Resample(series, models.Timeframe1s)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	require.Equal(t, int64(1000), first.Timestamp)
	require.Equal(t, float64(10), first.Open)
	require.Equal(t, float64(12), first.High)
	require.Equal(t, float64(8), first.Low)
	require.Equal(t, float64(8), first.Close)
	require.Equal(t, float64(4), first.Volume)
	require.Equal(t, 3, first.TradeCount)

	second := candles[1]
	require.Equal(t, int64(2000), second.Timestamp)
	require.Equal(t, float64(9), second.Open)
	require.Equal(t, float64(9), second.Close)
	require.Equal(t, 1, second.TradeCount)
}

func TestResampleOHLCInvariants(t *testing.T) {
	series := []models.Tick{
		tick(60000, 100, 1, models.SourceLive),
		tick(61000, 105, 1, models.SourceLive),
		tick(62000, 95, 1, models.SourceLive),
		tick(63000, 102, 1, models.SourceLive),
	}

	candles, err := Resample(series, models.Timeframe1m)
	require.NoError(t, err)
	require.Len(t, candles, 1)

	c := candles[0]
	require.LessOrEqual(t, c.Low, c.Open)
	require.LessOrEqual(t, c.Low, c.Close)
	require.GreaterOrEqual(t, c.High, c.Open)
	require.GreaterOrEqual(t, c.High, c.Close)
}

func TestResamplePure(t *testing.T) {
	series := []models.Tick{
		tick(1000, 10, 1, models.SourceLive),
		tick(6000, 11, 1, models.SourceLive),
	}

	first, err := Resample(series, models.Timeframe5s)
	require.NoError(t, err)
	second, err := Resample(series, models.Timeframe5s)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResampleEmptySeries(t *testing.T) {
	candles, err := Resample(nil, models.Timeframe1m)
	require.NoError(t, err)
	require.Empty(t, candles)
}

func TestResampleUnsupportedTimeframe(t *testing.T) {
	_, err := Resample([]models.Tick{tick(1000, 10, 1, models.SourceLive)}, models.Timeframe(""))
	require.Error(t, err)
}
