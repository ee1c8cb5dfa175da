package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	appconfig "feeflow/config"
	"feeflow/internal/channel"
	"feeflow/internal/fees"
	"feeflow/internal/ledger"
	"feeflow/logger"
	"feeflow/models"
)

func newTestServer(t *testing.T) (*Server, *ledger.Store, *channel.Channels) {
	t.Helper()

	resolver, err := fees.NewResolver(fees.DefaultSchedule())
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	store := ledger.NewStore()
	channels := channel.NewChannels(16)

	cfg := appconfig.ServerConfig{
		Enabled:   true,
		Address:   ":0",
		RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
	}
	srv, err := NewServer(cfg, resolver, store, channels, logger.Logger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	if srv == nil {
		t.Fatal("expected server, got nil")
	}
	return srv, store, channels
}

func performJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewServerDisabled(t *testing.T) {
	srv, err := NewServer(appconfig.ServerConfig{Enabled: false}, nil, nil, nil, logger.Logger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv != nil {
		t.Fatal("expected nil server when disabled")
	}
	if srv.Address() != "" {
		t.Fatal("nil server should report empty address")
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestTiersEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodGet, "/v1/tiers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Tiers []struct {
			Rank int    `json:"rank"`
			Name string `json:"name"`
		} `json:"tiers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Tiers) != 7 {
		t.Fatalf("expected 7 tiers, got %d", len(payload.Tiers))
	}
	if payload.Tiers[0].Name != "Wood" || payload.Tiers[6].Name != "Diamond" {
		t.Fatalf("unexpected tier ordering: %+v", payload.Tiers)
	}
}

func TestAccountVolumeEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)

	err := store.Apply(models.VolumeUpdate{
		Account:  "0xabc",
		Perps14d: decimal.NewFromInt(3_000_000),
		Spot14d:  decimal.NewFromInt(1_000_001),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := performJSON(t, srv, http.MethodGet, "/v1/accounts/0xabc/volume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Weighted decimal.Decimal `json:"weighted_volume"`
		Tier     string          `json:"tier"`
		TierRank int             `json:"tier_rank"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Weighted.Cmp(decimal.NewFromInt(5_000_002)) != 0 {
		t.Fatalf("unexpected weighted volume: %s", payload.Weighted)
	}
	if payload.Tier != "Stone" || payload.TierRank != 1 {
		t.Fatalf("unexpected tier: %s rank %d", payload.Tier, payload.TierRank)
	}
}

func TestAccountVolumeUnknownAccount(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodGet, "/v1/accounts/0xnobody/volume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Tier     string `json:"tier"`
		TierRank int    `json:"tier_rank"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Tier != "Wood" || payload.TierRank != 0 {
		t.Fatalf("expected lowest tier for unknown account, got %s rank %d", payload.Tier, payload.TierRank)
	}
}

func TestQuoteEndpointTieredVenue(t *testing.T) {
	srv, _, channels := newTestServer(t)

	rec := performJSON(t, srv, http.MethodPost, "/v1/quotes", models.QuoteRequest{
		Account:  "0xnobody",
		Venue:    "hyperliquid-perp",
		Side:     "taker",
		Notional: decimal.NewFromInt(10_000),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}

	var record models.QuoteRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if record.QuoteID == "" {
		t.Fatal("expected quote id")
	}
	if record.RateBps.Cmp(decimal.RequireFromString("9.5")) != 0 {
		t.Fatalf("unexpected rate: %s", record.RateBps)
	}
	if record.Tier != "Wood" {
		t.Fatalf("unexpected tier: %s", record.Tier)
	}
	// 10_000 notional at 9.5 bps
	if record.Fee.Cmp(decimal.RequireFromString("9.5")) != 0 {
		t.Fatalf("unexpected fee: %s", record.Fee)
	}

	select {
	case audit := <-channels.Audit:
		if audit.QuoteID != record.QuoteID {
			t.Fatalf("audit record mismatch: %s vs %s", audit.QuoteID, record.QuoteID)
		}
	default:
		t.Fatal("expected audit record on channel")
	}
}

func TestQuoteEndpointOstiumSurcharge(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodPost, "/v1/quotes", models.QuoteRequest{
		Account:          "0xabc",
		Venue:            "ostium-crypto",
		Side:             "maker",
		Asset:            "BTC/USD",
		Leverage:         decimal.NewFromInt(10),
		ReducesImbalance: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}

	var record models.QuoteRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// 3 bps maker rate plus 5 bps venue surcharge
	if record.RateBps.Cmp(decimal.NewFromInt(8)) != 0 {
		t.Fatalf("unexpected rate: %s", record.RateBps)
	}
	if record.SurchargeBps.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("unexpected surcharge: %s", record.SurchargeBps)
	}
}

func TestQuoteEndpointCommodityAlias(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodPost, "/v1/quotes", models.QuoteRequest{
		Account: "0xabc",
		Venue:   "ostium-commodity",
		Side:    "taker",
		Asset:   "gold",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}

	var record models.QuoteRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if record.Asset != "XAU/USD" {
		t.Fatalf("expected alias to normalise to XAU/USD, got %s", record.Asset)
	}
	// 3 bps gold rate plus 5 bps surcharge
	if record.RateBps.Cmp(decimal.NewFromInt(8)) != 0 {
		t.Fatalf("unexpected rate: %s", record.RateBps)
	}
}

func TestQuoteEndpointBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	cases := map[string]models.QuoteRequest{
		"unknown venue":     {Account: "0xabc", Venue: "nyse", Side: "taker"},
		"unknown side":      {Account: "0xabc", Venue: "hyperliquid-perp", Side: "both"},
		"negative leverage": {Account: "0xabc", Venue: "ostium-crypto", Side: "maker", Leverage: decimal.NewFromInt(-1)},
		"negative notional": {Account: "0xabc", Venue: "hyperliquid-perp", Side: "taker", Notional: decimal.NewFromInt(-5)},
	}

	for name, req := range cases {
		rec := performJSON(t, srv, http.MethodPost, "/v1/quotes", req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d body %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestQuoteEndpointUnknownCommodity(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := performJSON(t, srv, http.MethodPost, "/v1/quotes", models.QuoteRequest{
		Account: "0xabc",
		Venue:   "ostium-commodity",
		Side:    "taker",
		Asset:   "XYZ/USD",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unpriced commodity, got %d", rec.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	resolver, err := fees.NewResolver(fees.DefaultSchedule())
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	cfg := appconfig.ServerConfig{
		Enabled:   true,
		Address:   ":0",
		RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1},
	}
	srv, err := NewServer(cfg, resolver, ledger.NewStore(), channel.NewChannels(1), logger.Logger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", second.Code)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                           "0.0.0.0:8080",
		"  :9090  ":                  "0.0.0.0:9090",
		"localhost":                  "localhost:8080",
		"0.0.0.0:80":                 "0.0.0.0:80",
		"[::1]:443":                  "[::1]:443",
		"::1":                        "[::1]:8080",
		"*:8080":                     "0.0.0.0:8080",
		"http://13.200.112.203:8080": "13.200.112.203:8080",
		"https://13.200.112.203":     "13.200.112.203:8080",
		"http://:7070":               "0.0.0.0:7070",
		"tcp://localhost:5050":       "localhost:5050",
		"https://fees.example.com/":  "fees.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerNormalizesConfiguredAddress(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if got := srv.Address(); got != "0.0.0.0:0" {
		t.Fatalf("server address = %q, want %q", got, "0.0.0.0:0")
	}
}
