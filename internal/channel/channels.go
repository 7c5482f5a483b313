package channel

import (
	"context"
	"sync"
	"time"

	"tickflow/logger"
	"tickflow/models"
)

type ChannelStats struct {
	RawSent    int64
	RawDropped int64
}

// Channels carries validated tick batches from the stream connection
// manager (and the polling fallback) to the pipeline controller. Sends
// never block: when the buffer is full the batch is dropped and counted.
type Channels struct {
	Raw chan models.RawTickBatch

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw: make(chan models.RawTickBatch, rawBufferSize),
		log: log,
	}

	log.WithComponent("tick_channels").WithFields(logger.Fields{
		"raw_buffer_size": rawBufferSize,
	}).Info("tick channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Raw)
	c.log.WithComponent("tick_channels").Info("tick channels closed")
}

func (c *Channels) IncrementRawSent() {
	c.statsMutex.Lock()
	c.stats.RawSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementRawDropped() {
	c.statsMutex.Lock()
	c.stats.RawDropped++
	c.statsMutex.Unlock()
}

// SendRaw forwards a batch without blocking. It returns false when the
// context is cancelled or the channel is full, counting the drop.
func (c *Channels) SendRaw(ctx context.Context, batch models.RawTickBatch) bool {
	select {
	case c.Raw <- batch:
		c.IncrementRawSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementRawDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel depth and drop counters on a fixed
// interval until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.GetStats()
			c.log.WithComponent("tick_channels").WithFields(logger.Fields{
				"raw_channel_len": len(c.Raw),
				"raw_channel_cap": cap(c.Raw),
				"raw_sent":        stats.RawSent,
				"raw_dropped":     stats.RawDropped,
			}).Info("tick channel sizes")
		}
	}
}
