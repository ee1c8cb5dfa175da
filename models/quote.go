package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest is the POST /v1/quotes payload. Leverage, reduces_imbalance
// and asset only matter on the Ostium venues; notional is optional and, when
// positive, asks the server to compute the absolute fee as well.
type QuoteRequest struct {
	Account          string          `json:"account"`
	Venue            string          `json:"venue"`
	Side             string          `json:"side"`
	Asset            string          `json:"asset,omitempty"`
	Leverage         decimal.Decimal `json:"leverage"`
	ReducesImbalance bool            `json:"reduces_imbalance"`
	Notional         decimal.Decimal `json:"notional"`
}

// QuoteRecord is a resolved fee quote: the API response body and the exact
// record the audit writer persists for settlement.
type QuoteRecord struct {
	QuoteID      string          `json:"quote_id"`
	Account      string          `json:"account"`
	Venue        string          `json:"venue"`
	Side         string          `json:"side"`
	Asset        string          `json:"asset,omitempty"`
	RateBps      decimal.Decimal `json:"rate_bps"`
	SurchargeBps decimal.Decimal `json:"surcharge_bps"`
	Tier         string          `json:"tier,omitempty"`
	TierRank     int             `json:"tier_rank"`
	Fee          decimal.Decimal `json:"fee"`
	Timestamp    time.Time       `json:"timestamp"`
}

// VolumeUpdate is one account's refreshed 14 day volume figures as pushed by
// the accounting ledger, either inside the daily snapshot or over the
// websocket feed.
type VolumeUpdate struct {
	Account  string          `json:"account"`
	Perps14d decimal.Decimal `json:"perps_volume_14d"`
	Spot14d  decimal.Decimal `json:"spot_volume_14d"`
	AsOf     time.Time       `json:"as_of"`
}

// VolumeSnapshot is the ledger's daily volume file layout.
type VolumeSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Accounts    []VolumeUpdate `json:"accounts"`
}
