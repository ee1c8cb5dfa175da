package fees

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RatePair holds the taker and maker rates of one tier row, in basis points.
type RatePair struct {
	TakerBps decimal.Decimal
	MakerBps decimal.Decimal
}

// Tier is one row of the volume-tier table. Floor is an inclusive lower
// bound on weighted 14 day volume: the tier applies from its floor up to,
// but not including, the next tier's floor.
type Tier struct {
	Rank  int
	Name  string
	Floor decimal.Decimal
	Perps RatePair
	Spot  RatePair
}

// CryptoRule prices the Ostium crypto venue. Makers earn MakerBps only when
// the trade's leverage does not exceed MakerMaxLeverage and the trade reduces
// the venue's open interest imbalance; every other fill pays TakerBps.
type CryptoRule struct {
	TakerBps         decimal.Decimal
	MakerBps         decimal.Decimal
	MakerMaxLeverage decimal.Decimal
}

// Schedule is the full immutable fee configuration: the Hyperliquid tier
// table plus the Ostium flat rules and surcharge. A Schedule is built once
// (from yaml or the published defaults), validated, and never mutated;
// hot reload swaps the whole value.
type Schedule struct {
	Tiers        []Tier
	SurchargeBps decimal.Decimal

	Crypto       CryptoRule
	IndexBps     decimal.Decimal
	StockBps     decimal.Decimal
	FXDefaultBps decimal.Decimal
	FXBps        map[string]decimal.Decimal
	CommodityBps map[string]decimal.Decimal
}

// Validate checks the structural invariants of the schedule: a non-empty
// tier table whose floors start at zero and strictly increase, maker never
// above taker in any row, and no negative rate anywhere.
func (s *Schedule) Validate() error {
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: empty tier table", ErrConfig)
	}
	if !s.Tiers[0].Floor.IsZero() {
		return fmt.Errorf("%w: first tier floor must be 0, got %s", ErrConfig, s.Tiers[0].Floor)
	}
	for i, t := range s.Tiers {
		if t.Rank != i {
			return fmt.Errorf("%w: tier %q has rank %d at position %d", ErrConfig, t.Name, t.Rank, i)
		}
		if i > 0 && t.Floor.LessThanOrEqual(s.Tiers[i-1].Floor) {
			return fmt.Errorf("%w: tier floors not strictly increasing at %q", ErrConfig, t.Name)
		}
		for _, pair := range []struct {
			schedule string
			rates    RatePair
		}{{"perps", t.Perps}, {"spot", t.Spot}} {
			if pair.rates.TakerBps.IsNegative() || pair.rates.MakerBps.IsNegative() {
				return fmt.Errorf("%w: negative rate in %s tier %q", ErrConfig, pair.schedule, t.Name)
			}
			if pair.rates.MakerBps.GreaterThan(pair.rates.TakerBps) {
				return fmt.Errorf("%w: maker above taker in %s tier %q", ErrConfig, pair.schedule, t.Name)
			}
		}
	}

	if s.SurchargeBps.IsNegative() {
		return fmt.Errorf("%w: negative surcharge", ErrConfig)
	}
	if s.Crypto.TakerBps.IsNegative() || s.Crypto.MakerBps.IsNegative() {
		return fmt.Errorf("%w: negative ostium crypto rate", ErrConfig)
	}
	if s.Crypto.MakerBps.GreaterThan(s.Crypto.TakerBps) {
		return fmt.Errorf("%w: ostium crypto maker above taker", ErrConfig)
	}
	if s.Crypto.MakerMaxLeverage.Sign() <= 0 {
		return fmt.Errorf("%w: ostium crypto maker leverage cap must be positive", ErrConfig)
	}
	if s.IndexBps.IsNegative() || s.StockBps.IsNegative() || s.FXDefaultBps.IsNegative() {
		return fmt.Errorf("%w: negative ostium flat rate", ErrConfig)
	}
	for asset, bps := range s.FXBps {
		if bps.IsNegative() {
			return fmt.Errorf("%w: negative fx rate for %s", ErrConfig, asset)
		}
	}
	if len(s.CommodityBps) == 0 {
		return fmt.Errorf("%w: empty commodity rate table", ErrConfig)
	}
	for asset, bps := range s.CommodityBps {
		if bps.IsNegative() {
			return fmt.Errorf("%w: negative commodity rate for %s", ErrConfig, asset)
		}
	}
	return nil
}

// TierFor selects the highest tier whose floor does not exceed the weighted
// volume. A weighted volume exactly on a floor belongs to the tier that
// floor defines. The schedule must have been validated.
func (s *Schedule) TierFor(weighted decimal.Decimal) Tier {
	selected := s.Tiers[0]
	for _, t := range s.Tiers[1:] {
		if t.Floor.GreaterThan(weighted) {
			break
		}
		selected = t
	}
	return selected
}

func bps(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func mil(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Mul(decimal.NewFromInt(1_000_000))
}

// DefaultSchedule returns the published fee tables: seven weighted-volume
// tiers for the Hyperliquid schedules and the flat Ostium market rates with
// the 5 bps platform surcharge.
func DefaultSchedule() *Schedule {
	return &Schedule{
		Tiers: []Tier{
			{Rank: 0, Name: "Wood", Floor: mil(0),
				Perps: RatePair{TakerBps: bps("9.5"), MakerBps: bps("6.5")},
				Spot:  RatePair{TakerBps: bps("7"), MakerBps: bps("4")}},
			{Rank: 1, Name: "Stone", Floor: mil(5),
				Perps: RatePair{TakerBps: bps("9"), MakerBps: bps("6.2")},
				Spot:  RatePair{TakerBps: bps("6"), MakerBps: bps("3.6")}},
			{Rank: 2, Name: "Bronze", Floor: mil(25),
				Perps: RatePair{TakerBps: bps("8"), MakerBps: bps("5.5")},
				Spot:  RatePair{TakerBps: bps("5"), MakerBps: bps("3")}},
			{Rank: 3, Name: "Silver", Floor: mil(100),
				Perps: RatePair{TakerBps: bps("7"), MakerBps: bps("4.8")},
				Spot:  RatePair{TakerBps: bps("4"), MakerBps: bps("2.4")}},
			{Rank: 4, Name: "Gold", Floor: mil(500),
				Perps: RatePair{TakerBps: bps("6"), MakerBps: bps("4")},
				Spot:  RatePair{TakerBps: bps("3"), MakerBps: bps("1.6")}},
			{Rank: 5, Name: "Platinum", Floor: mil(2_000),
				Perps: RatePair{TakerBps: bps("5"), MakerBps: bps("3.2")},
				Spot:  RatePair{TakerBps: bps("2.5"), MakerBps: bps("1.2")}},
			{Rank: 6, Name: "Diamond", Floor: mil(7_000),
				Perps: RatePair{TakerBps: bps("4"), MakerBps: bps("2.5")},
				Spot:  RatePair{TakerBps: bps("2"), MakerBps: bps("0.8")}},
		},
		SurchargeBps: bps("5"),
		Crypto: CryptoRule{
			TakerBps:         bps("10"),
			MakerBps:         bps("3"),
			MakerMaxLeverage: decimal.NewFromInt(20),
		},
		IndexBps:     bps("5"),
		StockBps:     bps("5"),
		FXDefaultBps: bps("3"),
		FXBps: map[string]decimal.Decimal{
			"USD/MXN": bps("5"),
		},
		CommodityBps: map[string]decimal.Decimal{
			"XAU/USD": bps("3"),
			"CL/USD":  bps("10"),
			"HG/USD":  bps("15"),
			"XAG/USD": bps("15"),
			"XPT/USD": bps("20"),
			"XPD/USD": bps("20"),
		},
	}
}
