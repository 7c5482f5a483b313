package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	appconfig "tickflow/config"
	"tickflow/internal/api"
	"tickflow/internal/channel"
	"tickflow/internal/metrics"
	"tickflow/logger"
	"tickflow/models"
)

const defaultKeepAlive = 20 * time.Second

// Manager owns the live feed lifecycle: it dials the stream, validates
// inbound tick batches, reconnects with exponential backoff on transport
// failure and degrades to periodic REST polling once the reconnect budget
// is exhausted. While polling it keeps probing the stream in the
// background and returns to connecting when a probe succeeds.
type Manager struct {
	config   *appconfig.Config
	channels *channel.Channels
	client   *api.Client
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	state    State
	attempts int
	backoff  Backoff
	conn     *websocket.Conn
	symbols  map[string]struct{}
	// writeMu serialises data-frame writes: Subscribe/Unsubscribe push
	// subscription frames from the caller's goroutine while the run loop
	// sends the initial subscription after each (re)connect, and gorilla
	// permits only one concurrent writer per connection.
	writeMu sync.Mutex

	dialer *websocket.Dialer
}

// NewManager creates a stream manager. The REST client is used only by
// the polling fallback.
func NewManager(cfg *appconfig.Config, channels *channel.Channels, client *api.Client) *Manager {
	return &Manager{
		config:   cfg,
		channels: channels,
		client:   client,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		state:    StateDisconnected,
		backoff: Backoff{
			Base:   cfg.Feed.Reconnect.BaseDelay,
			Max:    cfg.Feed.Reconnect.MaxDelay,
			Jitter: cfg.Feed.Reconnect.Jitter,
		},
		symbols: make(map[string]struct{}),
		dialer:  websocket.DefaultDialer,
	}
}

// Start launches the connection loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("feed manager already running")
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	log := m.log.WithComponent("feed_manager").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{"url": m.config.Feed.URL}).Info("starting feed manager")

	m.wg.Add(1)
	go m.run()

	log.Info("feed manager started successfully")
	return nil
}

// Stop unsubscribes, tears down the transport and waits for all
// goroutines and pending timers. No timer fires after Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.running = false
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.Unlock()

	m.log.WithComponent("feed_manager").Info("stopping feed manager")
	m.wg.Wait()
	m.setState(StateDisconnected)
	m.log.WithComponent("feed_manager").Info("feed manager stopped")
}

// Subscribe adds a symbol to the live subscription. When the stream is
// connected the subscription change is pushed immediately.
func (m *Manager) Subscribe(symbol string) {
	m.mu.Lock()
	m.symbols[symbol] = struct{}{}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		m.sendSubscription(conn, "subscribe", []string{symbol})
	}
}

// Unsubscribe removes a symbol from the live subscription.
func (m *Manager) Unsubscribe(symbol string) {
	m.mu.Lock()
	delete(m.symbols, symbol)
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		m.sendSubscription(conn, "unsubscribe", []string{symbol})
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Attempts reports the consecutive failed reconnect attempts.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.log.WithComponent("feed_manager").WithFields(logger.Fields{
			"from": prev.String(),
			"to":   s.String(),
		}).Info("feed state changed")
	}
}

func (m *Manager) subscribedSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.symbols))
	for s := range m.symbols {
		out = append(out, s)
	}
	return out
}

func (m *Manager) isSubscribed(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.symbols[symbol]
	return ok
}

func (m *Manager) run() {
	defer m.wg.Done()

	log := m.log.WithComponent("feed_manager").WithFields(logger.Fields{"worker": "stream"})

	for {
		if m.ctx.Err() != nil {
			return
		}

		// Stay disconnected until at least one symbol is subscribed.
		if len(m.subscribedSymbols()) == 0 {
			if waitFor(m.ctx, 250*time.Millisecond) {
				return
			}
			continue
		}

		m.setState(StateConnecting)
		conn, _, err := m.dialer.DialContext(m.ctx, m.config.Feed.URL, nil)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			log.WithError(err).WithFields(logger.Fields{"url": m.config.Feed.URL}).Warn("failed to connect to stream")
			if m.handleFailure() {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.attempts = 0
		m.mu.Unlock()
		m.setState(StateConnected)

		if symbols := m.subscribedSymbols(); len(symbols) > 0 {
			m.sendSubscription(conn, "subscribe", symbols)
		}

		pingCancel := m.startPingLoop(conn)

		if err := m.readMessages(conn); err != nil && m.ctx.Err() == nil {
			log.WithError(err).Warn("stream read loop ended")
		}

		pingCancel()

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()

		if m.ctx.Err() != nil {
			return
		}

		m.setState(StateDisconnected)
		if m.handleFailure() {
			return
		}
	}
}

// handleFailure advances the backoff schedule after a failed connection
// or a transport drop. It returns true when the manager should exit.
func (m *Manager) handleFailure() bool {
	m.mu.Lock()
	m.attempts++
	attempts := m.attempts
	m.mu.Unlock()

	metrics.IncrementReconnect()

	if attempts > m.config.Feed.Reconnect.MaxAttempts {
		return m.pollUntilStreamReturns()
	}

	delay := m.backoff.Delay(attempts)
	m.log.WithComponent("feed_manager").WithFields(logger.Fields{
		"attempt":  attempts,
		"delay_ms": delay.Milliseconds(),
	}).Info("scheduling stream reconnect")

	m.setState(StateReconnecting)
	return waitFor(m.ctx, delay)
}

func (m *Manager) sendSubscription(conn *websocket.Conn, op string, symbols []string) {
	req := struct {
		Op      string   `json:"op"`
		Symbols []string `json:"symbols"`
	}{Op: op, Symbols: symbols}

	m.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	err := conn.WriteJSON(req)
	m.writeMu.Unlock()
	if err != nil {
		m.log.WithComponent("feed_manager").WithError(err).WithFields(logger.Fields{
			"op":      op,
			"symbols": symbols,
		}).Warn("failed to send subscription request")
	}
}

func (m *Manager) readMessages(conn *websocket.Conn) error {
	for {
		if m.ctx.Err() != nil {
			return m.ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		logger.IncrementStreamRead(len(msg))
		m.handleMessage(msg)
	}
}

// handleMessage validates one inbound stream message. Malformed payloads
// are dropped and counted, never fatal to the connection.
func (m *Manager) handleMessage(raw []byte) {
	log := m.log.WithComponent("feed_manager")

	var msg models.StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.EmitDropMetric(m.log, metrics.DropMetricMalformedMessage, "", "stream")
		log.WithError(err).Debug("failed to unmarshal stream message")
		return
	}

	switch msg.Type {
	case models.StreamTypeTicks:
		m.handleTickBatch(msg)
	case models.StreamTypeAlert, models.StreamTypeAnalytics:
		// Pushed analytics and alerts are consumed opaquely downstream.
		log.WithFields(logger.Fields{"type": msg.Type}).Debug("ignoring push message")
	default:
		metrics.EmitDropMetric(m.log, metrics.DropMetricMalformedMessage, msg.Symbol, "stream")
	}
}

// handleTickBatch validates the ticks of one stream message and forwards
// them grouped per symbol, one batch each, since wire ticks may carry
// their own symbol and a message can mix subscribed symbols.
func (m *Manager) handleTickBatch(msg models.StreamMessage) {
	bySymbol := make(map[string][]models.Tick)
	order := make([]string, 0, 1)
	for _, w := range msg.Ticks {
		t := w.Tick(msg.Symbol)
		if !t.Valid() {
			metrics.EmitDropMetric(m.log, metrics.DropMetricInvalidTick, t.Symbol, "stream")
			continue
		}
		if !m.isSubscribed(t.Symbol) {
			// drop unneeded symbol
			continue
		}
		if _, ok := bySymbol[t.Symbol]; !ok {
			order = append(order, t.Symbol)
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	received := time.Now()
	for _, symbol := range order {
		ticks := bySymbol[symbol]
		batch := models.RawTickBatch{
			BatchID:     uuid.New().String(),
			Symbol:      symbol,
			Ticks:       ticks,
			RecordCount: len(ticks),
			ReceivedAt:  received,
		}

		if !m.channels.SendRaw(m.ctx, batch) {
			if m.ctx.Err() != nil {
				return
			}
			metrics.EmitDropMetric(m.log, metrics.DropMetricChannelFull, batch.Symbol, "stream")
			m.log.WithComponent("feed_manager").WithFields(logger.Fields{
				"symbol": batch.Symbol,
			}).Warn("raw tick channel full, dropping batch")
			continue
		}

		metrics.AddTicksReceived(batch.Symbol, models.SourceLive, batch.RecordCount)
	}
}

func (m *Manager) startPingLoop(conn *websocket.Conn) context.CancelFunc {
	interval := m.config.Feed.PingInterval
	if interval <= 0 {
		interval = defaultKeepAlive
	}
	pingCtx, cancel := context.WithCancel(m.ctx)
	ticker := time.NewTicker(interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					m.log.WithComponent("feed_manager").WithError(err).Warn("failed to send stream ping")
					cancel()
					return
				}
			}
		}
	}()
	return cancel
}

// waitFor sleeps for the given delay, returning true when the context is
// cancelled first.
func waitFor(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
