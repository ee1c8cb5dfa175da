package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	appconfig "feeflow/config"
	"feeflow/internal/assets"
	"feeflow/internal/channel"
	"feeflow/internal/fees"
	"feeflow/internal/ledger"
	"feeflow/internal/metrics"
	"feeflow/logger"
	"feeflow/models"
)

// Server hosts the Gin-powered quote API.
type Server struct {
	cfg        appconfig.ServerConfig
	log        *logger.Log
	resolver   *fees.Resolver
	store      *ledger.Store
	channels   *channel.Channels
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer constructs the quote API server when it is enabled. When the
// server is disabled the returned server will be nil.
func NewServer(cfg appconfig.ServerConfig, resolver *fees.Resolver, store *ledger.Store, channels *channel.Channels, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 100
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		store:    store,
		channels: channels,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Run starts the HTTP server and blocks until the provided context is
// cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("starting quote API server")

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

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	router.Use(s.rateLimit())

	router.GET("/healthz", s.handleHealth)
	router.GET("/v1/tiers", s.handleTiers)
	router.GET("/v1/accounts/:account/volume", s.handleAccountVolume)
	router.POST("/v1/quotes", s.handleQuote)

	return router, nil
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"accounts": s.store.Len(),
	})
}

func (s *Server) handleTiers(c *gin.Context) {
	sched := s.resolver.Schedule()
	payload := make([]gin.H, 0, len(sched.Tiers))
	for _, t := range sched.Tiers {
		payload = append(payload, gin.H{
			"rank":            t.Rank,
			"name":            t.Name,
			"floor":           t.Floor,
			"perps_taker_bps": t.Perps.TakerBps,
			"perps_maker_bps": t.Perps.MakerBps,
			"spot_taker_bps":  t.Spot.TakerBps,
			"spot_maker_bps":  t.Spot.MakerBps,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tiers": payload})
}

func (s *Server) handleAccountVolume(c *gin.Context) {
	account := c.Param("account")
	record := s.store.Lookup(account)
	weighted := record.Weighted()
	tier := s.resolver.Schedule().TierFor(weighted)

	c.JSON(http.StatusOK, gin.H{
		"account":          account,
		"perps_volume_14d": record.Perps14d,
		"spot_volume_14d":  record.Spot14d,
		"weighted_volume":  weighted,
		"tier":             tier.Name,
		"tier_rank":        tier.Rank,
	})
}

func (s *Server) handleQuote(c *gin.Context) {
	log := s.log.WithComponent("quote_api")

	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	venue, err := fees.ParseVenue(req.Venue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := fees.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Notional.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notional must not be negative"})
		return
	}

	tc := fees.TradeContext{
		Asset:            assets.Normalize(req.Asset),
		Leverage:         req.Leverage,
		ReducesImbalance: req.ReducesImbalance,
	}
	vol := s.store.Lookup(req.Account)

	quote, err := s.resolver.ResolveQuote(vol, venue, side, tc)
	if err != nil {
		metrics.IncrementQuoteError(string(venue))
		switch {
		case errors.Is(err, fees.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, fees.ErrConfig):
			log.WithError(err).WithFields(logger.Fields{"venue": string(venue), "asset": tc.Asset}).Error("fee resolution failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			log.WithError(err).Error("fee resolution failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	record := models.QuoteRecord{
		QuoteID:      uuid.New().String(),
		Account:      req.Account,
		Venue:        string(venue),
		Side:         string(side),
		Asset:        tc.Asset,
		RateBps:      quote.RateBps,
		SurchargeBps: quote.SurchargeBps,
		Tier:         quote.TierName,
		TierRank:     quote.TierRank,
		Timestamp:    time.Now().UTC(),
	}
	if req.Notional.IsPositive() {
		record.Fee = quote.FeeFor(req.Notional)
	}

	if s.channels != nil {
		if !s.channels.SendAudit(c.Request.Context(), record) {
			metrics.EmitDropMetric(s.log, metrics.DropMetricQuoteAudit, record.Venue, record.Account, "quote_api")
		}
	}

	metrics.IncrementQuote(record.Venue, record.Side)
	logger.IncrementQuoteServed(1)

	log.WithFields(logger.Fields{
		"quote_id": record.QuoteID,
		"venue":    record.Venue,
		"side":     record.Side,
		"rate_bps": record.RateBps,
		"tier":     record.Tier,
	}).Debug("quote served")

	c.JSON(http.StatusOK, record)
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
