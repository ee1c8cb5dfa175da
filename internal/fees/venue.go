package fees

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Venue identifies the execution venue a trade is priced against. Each venue
// carries its own rate rule; Hyperliquid venues are volume-tiered while the
// Ostium venues use flat per-market rates plus the platform surcharge.
type Venue string

const (
	VenueHyperliquidPerp Venue = "hyperliquid-perp"
	VenueHyperliquidSpot Venue = "hyperliquid-spot"
	VenueOstiumCrypto    Venue = "ostium-crypto"
	VenueOstiumIndex     Venue = "ostium-index"
	VenueOstiumFX        Venue = "ostium-fx"
	VenueOstiumStock     Venue = "ostium-stock"
	VenueOstiumCommodity Venue = "ostium-commodity"
)

// Venues lists every venue the resolver knows how to price, in a stable order.
var Venues = []Venue{
	VenueHyperliquidPerp,
	VenueHyperliquidSpot,
	VenueOstiumCrypto,
	VenueOstiumIndex,
	VenueOstiumFX,
	VenueOstiumStock,
	VenueOstiumCommodity,
}

// ParseVenue normalises a caller supplied venue string. Underscores are
// accepted in place of dashes so JSON and yaml spellings both work.
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range Venues {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown venue %q", ErrInvalidInput, s)
}

// IsHyperliquid reports whether the venue uses the volume-tiered schedules.
func (v Venue) IsHyperliquid() bool {
	return v == VenueHyperliquidPerp || v == VenueHyperliquidSpot
}

// IsOstium reports whether the venue carries the flat platform surcharge.
func (v Venue) IsOstium() bool {
	switch v {
	case VenueOstiumCrypto, VenueOstiumIndex, VenueOstiumFX, VenueOstiumStock, VenueOstiumCommodity:
		return true
	default:
		return false
	}
}

// Side classifies an order as adding or removing liquidity.
type Side string

const (
	SideMaker Side = "maker"
	SideTaker Side = "taker"
)

// ParseSide normalises a caller supplied side string.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideMaker:
		return SideMaker, nil
	case SideTaker:
		return SideTaker, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidInput, s)
	}
}

// TradeContext carries the optional per-trade fields some venue rules consult.
// Asset selects the market on the FX and commodity venues. Leverage and
// ReducesImbalance drive the Ostium crypto maker predicate and are ignored
// everywhere else.
type TradeContext struct {
	Asset            string
	Leverage         decimal.Decimal
	ReducesImbalance bool
}

// VolumeRecord holds an account's trailing 14 day volumes as maintained by
// the external accounting ledger. Both figures are rolling sums recomputed
// daily at the UTC day boundary; this package only consumes them.
type VolumeRecord struct {
	Perps14d decimal.Decimal
	Spot14d  decimal.Decimal
}

var two = decimal.NewFromInt(2)

// Weighted blends the two volume figures into the tier ranking metric,
// counting spot volume double.
func (v VolumeRecord) Weighted() decimal.Decimal {
	return v.Perps14d.Add(v.Spot14d.Mul(two))
}

// Validate rejects volume figures the ledger should never produce. Negative
// sums are refused rather than clamped.
func (v VolumeRecord) Validate() error {
	if v.Perps14d.IsNegative() {
		return fmt.Errorf("%w: negative perps 14d volume %s", ErrInvalidInput, v.Perps14d)
	}
	if v.Spot14d.IsNegative() {
		return fmt.Errorf("%w: negative spot 14d volume %s", ErrInvalidInput, v.Spot14d)
	}
	return nil
}
