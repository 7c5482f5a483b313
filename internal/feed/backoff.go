package feed

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before a reconnect attempt: the base delay
// doubled per consecutive failure, capped at Max, with optional jitter so
// many clients sharing a timing source do not reconnect in lockstep.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// Delay returns the wait before the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	if b.Jitter > 0 {
		offset := (rand.Float64()*2 - 1) * b.Jitter * float64(d)
		d = time.Duration(float64(d) + offset)
		if d < b.Base {
			d = b.Base
		}
		if d > b.Max {
			d = b.Max
		}
	}
	return d
}
