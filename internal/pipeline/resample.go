package pipeline

import (
	"fmt"

	"tickflow/models"
)

// Resample buckets a sorted tick series into fixed-width OHLCV candles.
// It is a pure function of its inputs: the same series and timeframe
// always produce the same candle sequence. An unsupported timeframe is a
// validation error, not a silent default.
func Resample(series []models.Tick, tf models.Timeframe) ([]models.Candle, error) {
	width := tf.Millis()
	if width <= 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", string(tf))
	}

	candles := make([]models.Candle, 0, len(series)/4+1)
	for _, t := range series {
		bucket := t.Timestamp - t.Timestamp%width

		if n := len(candles); n > 0 && candles[n-1].Timestamp == bucket {
			c := &candles[n-1]
			if t.Price > c.High {
				c.High = t.Price
			}
			if t.Price < c.Low {
				c.Low = t.Price
			}
			c.Close = t.Price
			c.Volume += t.Quantity
			c.TradeCount++
			continue
		}

		candles = append(candles, models.Candle{
			Timestamp:  bucket,
			Open:       t.Price,
			High:       t.Price,
			Low:        t.Price,
			Close:      t.Price,
			Volume:     t.Quantity,
			TradeCount: 1,
		})
	}
	return candles, nil
}
