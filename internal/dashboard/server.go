package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tickflow/config"
	"tickflow/internal/api"
	"tickflow/internal/feed"
	"tickflow/internal/metrics"
	"tickflow/internal/pipeline"
	"tickflow/logger"
	"tickflow/models"
)

// Server hosts the Gin-powered status API: the merged tick series,
// derived candles and live statistics of the pipeline, the feed
// connection state, proxied backend analytics and the Prometheus scrape
// endpoint.
type Server struct {
	cfg        config.DashboardConfig
	log        *logger.Log
	pipeline   *pipeline.Controller
	feed       *feed.Manager
	client     *api.Client
	httpServer *http.Server
}

// NewServer constructs the status server when the dashboard feature is
// enabled. When disabled the returned server is nil and Run is a no-op.
func NewServer(cfg config.DashboardConfig, controller *pipeline.Controller, manager *feed.Manager, client *api.Client) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	return &Server{
		cfg:      cfg,
		log:      logger.GetLogger(),
		pipeline: controller,
		feed:     manager,
		client:   client,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server exits with an error.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"address": s.cfg.Address,
	}).Info("starting dashboard server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	if config.IsProductionLike(config.AppEnvironment()) {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.TestMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"app":    appName,
			"symbol": s.pipeline.ActiveSymbol(),
		})
	})

	router.GET("/api/symbols", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"symbols": s.pipeline.Store().Symbols()})
	})

	router.GET("/api/series/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		ticks := s.pipeline.Ticks(symbol)
		c.JSON(http.StatusOK, gin.H{
			"symbol": symbol,
			"count":  len(ticks),
			"ticks":  ticks,
		})
	})

	router.GET("/api/candles/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")

		if tf := c.Query("timeframe"); tf != "" {
			candles, err := s.pipeline.CandlesFor(symbol, tf)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"symbol": symbol, "timeframe": tf, "candles": candles})
			return
		}

		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "candles": s.pipeline.Candles(symbol)})
	})

	router.GET("/api/stats/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		stats, ok := s.pipeline.Stats(symbol)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no statistics for symbol " + symbol})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	router.GET("/api/feed/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":    s.feed.State().String(),
			"attempts": s.feed.Attempts(),
		})
	})

	router.GET("/api/alerts", func(c *gin.Context) {
		alerts, err := s.client.GetAlerts(c.Request.Context())
		if err != nil {
			s.proxyError(c, "alerts", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts})
	})

	router.GET("/api/timeseries/:symbol", func(c *gin.Context) {
		tf, err := models.ParseTimeframe(c.DefaultQuery("timeframe", "1m"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))

		series, err := s.client.GetTimeseries(c.Request.Context(), c.Param("symbol"), tf, limit)
		if err != nil {
			s.proxyError(c, "timeseries", err)
			return
		}
		c.JSON(http.StatusOK, series)
	})

	analytics := map[string]func(context.Context, string, string) (json.RawMessage, error){
		"spread":      s.client.GetSpreadAnalytics,
		"correlation": s.client.GetCorrelation,
		"hedge-ratio": s.client.GetHedgeRatio,
	}
	router.GET("/api/analytics/:kind", func(c *gin.Context) {
		fetch, ok := analytics[c.Param("kind")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown analytics kind " + c.Param("kind")})
			return
		}
		doc, err := fetch(c.Request.Context(), c.Query("symbol_a"), c.Query("symbol_b"))
		if err != nil {
			s.proxyError(c, "analytics", err)
			return
		}
		c.JSON(http.StatusOK, models.Analytics{Kind: c.Param("kind"), Data: doc})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router, nil
}

// proxyError maps a backend failure onto the status response. Backend
// statuses pass through; transport failures surface as 502.
func (s *Server) proxyError(c *gin.Context, what string, err error) {
	s.log.WithComponent("dashboard").WithError(err).Warn("backend " + what + " request failed")

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		c.JSON(statusErr.Status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
