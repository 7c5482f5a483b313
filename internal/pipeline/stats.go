package pipeline

import (
	"math"
	"time"

	"tickflow/models"
)

// ComputeLiveStats derives rolling statistics over the last sampleWindow
// ticks of a series (or the whole series when shorter). The z-score is
// defined as zero when the window's standard deviation is zero, the VWAP
// as zero when the window carries no volume; neither case is an error.
func ComputeLiveStats(series []models.Tick, sampleWindow int) models.LiveStats {
	stats := models.LiveStats{ComputedAt: time.Now()}
	if len(series) == 0 {
		return stats
	}

	window := series
	if sampleWindow > 0 && len(series) > sampleWindow {
		window = series[len(series)-sampleWindow:]
	}

	stats.Symbol = window[len(window)-1].Symbol
	stats.SampleCount = len(window)

	var sum, sumPV, sumQty float64
	for _, t := range window {
		sum += t.Price
		sumPV += t.Price * t.Quantity
		sumQty += t.Quantity
	}
	mean := sum / float64(len(window))

	var variance float64
	for _, t := range window {
		d := t.Price - mean
		variance += d * d
	}
	variance /= float64(len(window))
	std := math.Sqrt(variance)

	last := window[len(window)-1].Price
	if std > 0 {
		stats.ZScore = (last - mean) / std
	}
	if sumQty > 0 {
		stats.VWAP = sumPV / sumQty
	}
	if first := window[0].Price; first != 0 {
		stats.Momentum = (last - first) / first * 100
	}
	return stats
}
