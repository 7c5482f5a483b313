package feed

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tickflow/internal/api"
	"tickflow/internal/metrics"
	"tickflow/logger"
	"tickflow/models"
)

// pollBatchLimit bounds how many ticks each fallback fetch requests; the
// merge stage deduplicates overlap between consecutive polls.
const pollBatchLimit = 50

// pollUntilStreamReturns is the degraded mode entered once the reconnect
// budget is exhausted: subscribed symbols are refreshed over REST on the
// poll interval while a background probe keeps trying the stream on a
// longer interval. It returns true when the manager should exit, false
// when a probe succeeded and the caller should resume connecting.
func (m *Manager) pollUntilStreamReturns() bool {
	m.setState(StatePollingFallback)

	log := m.log.WithComponent("feed_manager").WithFields(logger.Fields{"worker": "poller"})
	log.WithFields(logger.Fields{
		"poll_interval":  m.config.Feed.PollInterval.String(),
		"retry_interval": m.config.Feed.StreamRetryInterval.String(),
	}).Warn("reconnect attempts exhausted, entering polling fallback")

	rps := m.config.Feed.PollRateLimit.RequestsPerSecond
	burst := m.config.Feed.PollRateLimit.BurstSize
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = rps
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	pollTicker := time.NewTicker(m.config.Feed.PollInterval)
	defer pollTicker.Stop()
	retryTicker := time.NewTicker(m.config.Feed.StreamRetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return true

		case <-pollTicker.C:
			for _, symbol := range m.subscribedSymbols() {
				if err := limiter.Wait(m.ctx); err != nil {
					return true
				}
				m.pollSymbol(symbol)
			}

		case <-retryTicker.C:
			conn, _, err := m.dialer.DialContext(m.ctx, m.config.Feed.URL, nil)
			if err != nil {
				if m.ctx.Err() != nil {
					return true
				}
				log.WithError(err).Debug("background stream probe failed")
				continue
			}
			// The probe succeeded; hand control back to the connect loop.
			conn.Close()
			m.mu.Lock()
			m.attempts = 0
			m.mu.Unlock()
			log.Info("stream reachable again, leaving polling fallback")
			m.setState(StateConnecting)
			return false
		}
	}
}

// pollSymbol fetches the recent ticks of one symbol over REST and feeds
// them through the same channel as live batches. Fetch errors are
// transient by definition here; they are logged and retried on the next
// interval.
func (m *Manager) pollSymbol(symbol string) {
	log := m.log.WithComponent("feed_manager").WithFields(logger.Fields{
		"worker": "poller",
		"symbol": symbol,
	})

	metrics.IncrementFallbackPoll()

	ticks, err := m.client.GetTicks(m.ctx, symbol, pollBatchLimit)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		if api.IsRetryable(err) {
			log.WithError(err).Warn("fallback poll failed, will retry")
		} else {
			log.WithError(err).Error("fallback poll failed")
		}
		return
	}
	logger.IncrementPollRead(len(ticks))

	valid := make([]models.Tick, 0, len(ticks))
	for _, t := range ticks {
		t.Source = models.SourceLive
		if !t.Valid() {
			metrics.EmitDropMetric(m.log, metrics.DropMetricInvalidTick, t.Symbol, "poll")
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return
	}

	batch := models.RawTickBatch{
		BatchID:     uuid.New().String(),
		Symbol:      symbol,
		Ticks:       valid,
		RecordCount: len(valid),
		ReceivedAt:  time.Now(),
	}

	if !m.channels.SendRaw(m.ctx, batch) {
		if m.ctx.Err() == nil {
			metrics.EmitDropMetric(m.log, metrics.DropMetricChannelFull, symbol, "poll")
		}
		return
	}

	metrics.AddTicksReceived(symbol, models.SourceLive, batch.RecordCount)
}
