package fees

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

var tenThousand = decimal.NewFromInt(10_000)

// Quote is the result of a fee resolution: the applicable rate plus the
// tier and surcharge breakdown the API surfaces to callers.
type Quote struct {
	RateBps      decimal.Decimal
	SurchargeBps decimal.Decimal
	TierRank     int
	TierName     string
	Tiered       bool
}

// FeeFor converts the quoted rate into an absolute fee for the given
// notional: rate in bps times notional over ten thousand.
func (q Quote) FeeFor(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(q.RateBps).Div(tenThousand)
}

// Resolver answers fee rate lookups against an immutable Schedule. The
// schedule is held behind an atomic pointer so that a reload swaps the
// whole table at once; individual resolutions are pure functions of their
// inputs and the loaded schedule, safe for unlimited concurrent use.
type Resolver struct {
	sched atomic.Pointer[Schedule]
}

// NewResolver validates the schedule and returns a resolver bound to it.
func NewResolver(s *Schedule) (*Resolver, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schedule", ErrConfig)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{}
	r.sched.Store(s)
	return r, nil
}

// Schedule returns the currently loaded schedule.
func (r *Resolver) Schedule() *Schedule {
	return r.sched.Load()
}

// Swap validates the new schedule and atomically replaces the current one.
// On validation failure the previous schedule stays in effect.
func (r *Resolver) Swap(s *Schedule) error {
	if s == nil {
		return fmt.Errorf("%w: nil schedule", ErrConfig)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.sched.Store(s)
	return nil
}

// ResolveFee returns the applicable fee rate in basis points for a trade on
// the given venue and side, priced against the account's trailing volumes.
func (r *Resolver) ResolveFee(vol VolumeRecord, venue Venue, side Side, tc TradeContext) (decimal.Decimal, error) {
	q, err := r.ResolveQuote(vol, venue, side, tc)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return q.RateBps, nil
}

// ResolveQuote is ResolveFee with the tier and surcharge breakdown attached.
// Hyperliquid venues rank the account by weighted volume (perps + 2*spot)
// and read the side's rate from the matching tier row; Ostium venues apply
// their flat market rule plus the platform surcharge and price every fill
// as taker except for the crypto maker predicate.
func (r *Resolver) ResolveQuote(vol VolumeRecord, venue Venue, side Side, tc TradeContext) (Quote, error) {
	if side != SideMaker && side != SideTaker {
		return Quote{}, fmt.Errorf("%w: unknown side %q", ErrInvalidInput, side)
	}
	if err := vol.Validate(); err != nil {
		return Quote{}, err
	}
	if tc.Leverage.IsNegative() {
		return Quote{}, fmt.Errorf("%w: negative leverage %s", ErrInvalidInput, tc.Leverage)
	}

	s := r.sched.Load()

	switch venue {
	case VenueHyperliquidPerp, VenueHyperliquidSpot:
		tier := s.TierFor(vol.Weighted())
		pair := tier.Perps
		if venue == VenueHyperliquidSpot {
			pair = tier.Spot
		}
		rate := pair.TakerBps
		if side == SideMaker {
			rate = pair.MakerBps
		}
		return Quote{RateBps: rate, TierRank: tier.Rank, TierName: tier.Name, Tiered: true}, nil

	case VenueOstiumCrypto:
		rate := s.Crypto.TakerBps
		// Maker pricing requires bounded leverage and an imbalance-reducing
		// trade; anything else falls back to the taker rate.
		if side == SideMaker && tc.ReducesImbalance &&
			tc.Leverage.Sign() > 0 && tc.Leverage.LessThanOrEqual(s.Crypto.MakerMaxLeverage) {
			rate = s.Crypto.MakerBps
		}
		return surcharged(rate, s), nil

	case VenueOstiumIndex:
		return surcharged(s.IndexBps, s), nil

	case VenueOstiumFX:
		rate := s.FXDefaultBps
		if override, ok := s.FXBps[tc.Asset]; ok {
			rate = override
		}
		return surcharged(rate, s), nil

	case VenueOstiumStock:
		return surcharged(s.StockBps, s), nil

	case VenueOstiumCommodity:
		rate, ok := s.CommodityBps[tc.Asset]
		if !ok {
			return Quote{}, fmt.Errorf("%w: no commodity rate for asset %q", ErrConfig, tc.Asset)
		}
		return surcharged(rate, s), nil

	default:
		return Quote{}, fmt.Errorf("%w: no rule for venue %q", ErrConfig, venue)
	}
}

func surcharged(rate decimal.Decimal, s *Schedule) Quote {
	return Quote{
		RateBps:      rate.Add(s.SurchargeBps),
		SurchargeBps: s.SurchargeBps,
		TierRank:     -1,
	}
}
