package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"feeflow/internal/fees"
)

// RatePairEntry is one taker/maker pair in the schedule file. Rates are
// written as strings so the yaml stays exact (no float rounding).
type RatePairEntry struct {
	TakerBps string `yaml:"taker_bps"`
	MakerBps string `yaml:"maker_bps"`
}

// TierEntry is one volume tier row in the schedule file.
type TierEntry struct {
	Name  string        `yaml:"name"`
	Floor string        `yaml:"floor"`
	Perps RatePairEntry `yaml:"perps"`
	Spot  RatePairEntry `yaml:"spot"`
}

// CryptoRuleEntry configures the Ostium crypto maker predicate.
type CryptoRuleEntry struct {
	TakerBps         string `yaml:"taker_bps"`
	MakerBps         string `yaml:"maker_bps"`
	MakerMaxLeverage string `yaml:"maker_max_leverage"`
}

// OstiumRules groups the flat per-market Ostium rates.
type OstiumRules struct {
	Crypto      CryptoRuleEntry   `yaml:"crypto"`
	IndexBps    string            `yaml:"index_bps"`
	StockBps    string            `yaml:"stock_bps"`
	FXBps       string            `yaml:"fx_bps"`
	FXOverrides map[string]string `yaml:"fx_overrides"`
	Commodities map[string]string `yaml:"commodities"`
}

// ScheduleFile is the on-disk layout of the fee schedule.
type ScheduleFile struct {
	SurchargeBps string      `yaml:"surcharge_bps"`
	Tiers        []TierEntry `yaml:"tiers"`
	Ostium       OstiumRules `yaml:"ostium"`
}

// LoadSchedule reads and validates the fee schedule from the given path,
// returning the immutable domain schedule ready for the resolver.
func LoadSchedule(path string) (*fees.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	var file ScheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}
	return buildSchedule(&file)
}

func buildSchedule(file *ScheduleFile) (*fees.Schedule, error) {
	sched := &fees.Schedule{
		FXBps:        map[string]decimal.Decimal{},
		CommodityBps: map[string]decimal.Decimal{},
	}

	var err error
	if sched.SurchargeBps, err = parseRate("surcharge_bps", file.SurchargeBps); err != nil {
		return nil, err
	}

	for i, entry := range file.Tiers {
		tier := fees.Tier{Rank: i, Name: entry.Name}
		if tier.Floor, err = parseRate(fmt.Sprintf("tiers[%d].floor", i), entry.Floor); err != nil {
			return nil, err
		}
		if tier.Perps, err = parsePair(fmt.Sprintf("tiers[%d].perps", i), entry.Perps); err != nil {
			return nil, err
		}
		if tier.Spot, err = parsePair(fmt.Sprintf("tiers[%d].spot", i), entry.Spot); err != nil {
			return nil, err
		}
		sched.Tiers = append(sched.Tiers, tier)
	}

	if sched.Crypto.TakerBps, err = parseRate("ostium.crypto.taker_bps", file.Ostium.Crypto.TakerBps); err != nil {
		return nil, err
	}
	if sched.Crypto.MakerBps, err = parseRate("ostium.crypto.maker_bps", file.Ostium.Crypto.MakerBps); err != nil {
		return nil, err
	}
	if sched.Crypto.MakerMaxLeverage, err = parseRate("ostium.crypto.maker_max_leverage", file.Ostium.Crypto.MakerMaxLeverage); err != nil {
		return nil, err
	}
	if sched.IndexBps, err = parseRate("ostium.index_bps", file.Ostium.IndexBps); err != nil {
		return nil, err
	}
	if sched.StockBps, err = parseRate("ostium.stock_bps", file.Ostium.StockBps); err != nil {
		return nil, err
	}
	if sched.FXDefaultBps, err = parseRate("ostium.fx_bps", file.Ostium.FXBps); err != nil {
		return nil, err
	}
	for asset, raw := range file.Ostium.FXOverrides {
		if sched.FXBps[asset], err = parseRate("ostium.fx_overrides."+asset, raw); err != nil {
			return nil, err
		}
	}
	for asset, raw := range file.Ostium.Commodities {
		if sched.CommodityBps[asset], err = parseRate("ostium.commodities."+asset, raw); err != nil {
			return nil, err
		}
	}

	if err := sched.Validate(); err != nil {
		return nil, err
	}
	return sched, nil
}

func parsePair(field string, entry RatePairEntry) (fees.RatePair, error) {
	taker, err := parseRate(field+".taker_bps", entry.TakerBps)
	if err != nil {
		return fees.RatePair{}, err
	}
	maker, err := parseRate(field+".maker_bps", entry.MakerBps)
	if err != nil {
		return fees.RatePair{}, err
	}
	return fees.RatePair{TakerBps: taker, MakerBps: maker}, nil
}

func parseRate(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is required", fees.ErrConfig, field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %v", fees.ErrConfig, field, err)
	}
	return v, nil
}
