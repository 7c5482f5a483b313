package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "tickflow/config"
	"tickflow/internal/api"
	"tickflow/internal/metrics"
	"tickflow/internal/store"
	"tickflow/logger"
	"tickflow/models"
)

// Subscriber is the slice of the feed manager the controller drives.
type Subscriber interface {
	Subscribe(symbol string)
	Unsubscribe(symbol string)
}

// Controller merges historical and live tick data into the store and
// derives candles and live statistics from it. All mutation funnels
// through mergeLive/mergeHistorical, which update a series under the
// store lock, so historical responses and live batches can never
// interleave mid-merge. Candles are rebuilt after each merge; statistics
// run on a fixed cadence so bursts of ticks coalesce into one update per
// interval.
type Controller struct {
	config  *appconfig.Config
	rawChan <-chan models.RawTickBatch
	client  *api.Client
	feed    Subscriber
	store   *store.TickStore
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	timeframe models.Timeframe
	candles   map[string][]models.Candle
	stats     map[string]models.LiveStats

	active     string
	generation uint64

	mergeCount int64
}

// NewController validates the pipeline configuration and creates the
// controller. An unknown timeframe or non-positive window is a
// configuration error, reported here rather than mid-stream.
func NewController(cfg *appconfig.Config, rawChan <-chan models.RawTickBatch, client *api.Client, feed Subscriber) (*Controller, error) {
	tf, err := models.ParseTimeframe(cfg.Pipeline.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("pipeline timeframe: %w", err)
	}
	if cfg.Pipeline.RollingWindow <= 0 {
		return nil, fmt.Errorf("pipeline rolling window must be greater than 0")
	}
	if cfg.Pipeline.SampleWindow <= 0 {
		return nil, fmt.Errorf("pipeline sample window must be greater than 0")
	}

	return &Controller{
		config:    cfg,
		rawChan:   rawChan,
		client:    client,
		feed:      feed,
		store:     store.New(cfg.Pipeline.RollingWindow),
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
		timeframe: tf,
		candles:   make(map[string][]models.Candle),
		stats:     make(map[string]models.LiveStats),
	}, nil
}

// Store exposes the tick store for read-only snapshot access.
func (c *Controller) Store() *store.TickStore {
	return c.store
}

// Start begins consuming live batches and recomputing statistics.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("pipeline controller already running")
	}
	c.running = true
	c.ctx = ctx
	c.mu.Unlock()

	log := c.log.WithComponent("pipeline").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{
		"timeframe":      string(c.timeframe),
		"rolling_window": c.config.Pipeline.RollingWindow,
		"stats_interval": c.config.Pipeline.StatsInterval.String(),
	}).Info("starting pipeline controller")

	c.wg.Add(1)
	go c.worker()

	c.wg.Add(1)
	go c.statsLoop()

	c.wg.Add(1)
	go c.metricsReporter()

	log.Info("pipeline controller started successfully")
	return nil
}

// Stop waits for the merge worker and tickers to drain.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.log.WithComponent("pipeline").Info("stopping pipeline controller")
	c.wg.Wait()
	c.log.WithComponent("pipeline").Info("pipeline controller stopped")
}

// Select switches the active symbol: the previous symbol is unsubscribed
// and its series released, the new one subscribed and its history loaded.
// A generation counter guards against a slow historical response for a
// no-longer-selected symbol landing in the active series.
func (c *Controller) Select(symbol string) {
	c.mu.Lock()
	prev := c.active
	if prev == symbol {
		c.mu.Unlock()
		return
	}
	c.active = symbol
	c.generation++
	gen := c.generation
	delete(c.candles, prev)
	delete(c.stats, prev)
	c.mu.Unlock()

	if prev != "" {
		c.feed.Unsubscribe(prev)
		c.store.Release(prev)
		c.log.WithComponent("pipeline").WithFields(logger.Fields{
			"symbol":   symbol,
			"previous": prev,
		}).Info("released previous symbol")
	}
	c.feed.Subscribe(symbol)

	c.wg.Add(1)
	go c.loadHistorical(symbol, gen)
}

// ActiveSymbol reports the currently selected symbol.
func (c *Controller) ActiveSymbol() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Ticks returns a read-only snapshot of the recent deduplicated series.
func (c *Controller) Ticks(symbol string) []models.Tick {
	return c.store.Recent(symbol)
}

// Candles returns the current candle sequence for the configured
// timeframe.
func (c *Controller) Candles(symbol string) []models.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Candle, len(c.candles[symbol]))
	copy(out, c.candles[symbol])
	return out
}

// CandlesFor resamples the symbol's series on demand for any supported
// timeframe. Unknown timeframes fail with a validation error.
func (c *Controller) CandlesFor(symbol string, timeframe string) ([]models.Candle, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return Resample(c.store.Recent(symbol), tf)
}

// Stats returns the latest live statistics snapshot for a symbol.
func (c *Controller) Stats(symbol string) (models.LiveStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, ok := c.stats[symbol]
	return stats, ok
}

func (c *Controller) worker() {
	defer c.wg.Done()

	log := c.log.WithComponent("pipeline").WithFields(logger.Fields{"worker": "merge"})

	for {
		select {
		case <-c.ctx.Done():
			return
		case batch, ok := <-c.rawChan:
			if !ok {
				log.Info("raw channel closed, merge worker stopping")
				return
			}
			c.mergeLive(batch)
		}
	}
}

func (c *Controller) mergeLive(batch models.RawTickBatch) {
	window := c.config.Pipeline.RollingWindow
	length := c.store.Update(batch.Symbol, func(existing []models.Tick) []models.Tick {
		return Merge(existing, nil, batch.Ticks, batch.Symbol, window)
	})

	c.mu.Lock()
	c.mergeCount++
	c.mu.Unlock()

	c.rebuildCandles(batch.Symbol)

	c.log.WithComponent("pipeline").WithFields(logger.Fields{
		"symbol":        batch.Symbol,
		"batch_id":      batch.BatchID,
		"record_count":  batch.RecordCount,
		"series_length": length,
	}).Debug("live batch merged")
}

// mergeHistorical merges a historical fetch result, re-checking the
// generation under the store lock so a concurrent Select cannot land
// between the staleness check and the merge and have the released
// series recreated. Returns false when the response was stale.
func (c *Controller) mergeHistorical(symbol string, ticks []models.Tick, generation uint64) bool {
	window := c.config.Pipeline.RollingWindow
	merged := false
	length := c.store.Update(symbol, func(existing []models.Tick) []models.Tick {
		c.mu.RLock()
		stale := c.generation != generation
		c.mu.RUnlock()
		if stale {
			return existing
		}
		merged = true
		return Merge(existing, ticks, nil, symbol, window)
	})
	if !merged {
		return false
	}

	c.mu.Lock()
	c.mergeCount++
	c.mu.Unlock()

	c.rebuildCandles(symbol)

	c.log.WithComponent("pipeline").WithFields(logger.Fields{
		"symbol":        symbol,
		"record_count":  len(ticks),
		"series_length": length,
	}).Info("historical ticks merged")
	return true
}

// rebuildCandles regenerates the candle sequence from a fresh series
// snapshot. Candles are replaced wholesale, never mutated in place.
func (c *Controller) rebuildCandles(symbol string) {
	candles, err := Resample(c.store.Recent(symbol), c.timeframe)
	if err != nil {
		// Unreachable: the timeframe is validated at construction.
		c.log.WithComponent("pipeline").WithError(err).Error("resample failed")
		return
	}

	c.mu.Lock()
	c.candles[symbol] = candles
	c.mu.Unlock()
}

// loadHistorical performs the one-shot historical fetch for a newly
// selected symbol, retrying transient failures, and discards the
// response when the selection has moved on.
func (c *Controller) loadHistorical(symbol string, generation uint64) {
	defer c.wg.Done()

	log := c.log.WithComponent("pipeline").WithFields(logger.Fields{
		"worker": "historical",
		"symbol": symbol,
	})

	var ticks []models.Tick
	var err error
	for attempt := 1; attempt <= c.config.API.MaxRetries; attempt++ {
		ticks, err = c.client.GetTicks(c.ctx, symbol, c.config.API.HistoricalLimit)
		if err == nil {
			break
		}
		if c.ctx.Err() != nil {
			return
		}
		if !api.IsRetryable(err) || attempt == c.config.API.MaxRetries {
			log.WithError(err).Error("historical fetch failed")
			return
		}
		log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("historical fetch failed, retrying")
		if waitForInterval(c.ctx, time.Duration(attempt)*time.Second) {
			return
		}
	}

	if !c.mergeHistorical(symbol, ticks, generation) {
		metrics.EmitDropMetric(c.log, metrics.DropMetricStaleHistorical, symbol, "historical")
		log.Info("discarding stale historical response")
		return
	}
	metrics.AddTicksReceived(symbol, models.SourceHistorical, len(ticks))
}

// statsLoop recomputes live statistics for every stored symbol on a
// fixed cadence, bounding recomputation cost regardless of tick arrival
// rate.
func (c *Controller) statsLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Pipeline.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range c.store.Symbols() {
				series := c.store.Recent(symbol)
				if len(series) == 0 {
					continue
				}
				stats := ComputeLiveStats(series, c.config.Pipeline.SampleWindow)
				c.mu.Lock()
				c.stats[symbol] = stats
				c.mu.Unlock()
			}
		}
	}
}

func (c *Controller) metricsReporter() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			running := c.running
			merges := c.mergeCount
			c.mu.RUnlock()
			if !running {
				return
			}
			c.log.WithComponent("pipeline").WithFields(logger.Fields{
				"raw_channel_len": len(c.rawChan),
				"raw_channel_cap": cap(c.rawChan),
				"merges":          merges,
				"symbols":         len(c.store.Symbols()),
			}).Info("pipeline channel sizes")
			c.log.LogMetric("pipeline", "merges_total", merges, "counter", nil)
		}
	}
}

// waitForInterval sleeps for the given delay, returning true when the
// context is cancelled first.
func waitForInterval(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
