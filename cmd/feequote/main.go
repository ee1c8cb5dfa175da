// cmd/feequote/main.go
//
// One-off fee resolution from the command line, useful for checking a
// schedule file before rolling it out:
//
//	feequote -fees config/fees.yml -venue hyperliquid-perp -side taker -perps-volume 6000000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"feeflow/config"
	"feeflow/internal/assets"
	"feeflow/internal/fees"
)

func main() {
	feesPath := flag.String("fees", "config/fees.yml", "Path to fee schedule file")
	venueFlag := flag.String("venue", "", "Venue identifier, e.g. hyperliquid-perp")
	sideFlag := flag.String("side", "taker", "Fill side: maker or taker")
	assetFlag := flag.String("asset", "", "Asset pair for the Ostium venues, e.g. XAU/USD")
	leverageFlag := flag.String("leverage", "0", "Position leverage")
	reduces := flag.Bool("reduces-imbalance", false, "Whether the fill reduces open interest imbalance")
	perpsVolume := flag.String("perps-volume", "0", "14 day perps volume")
	spotVolume := flag.String("spot-volume", "0", "14 day spot volume")
	notional := flag.String("notional", "0", "Optional notional to price")

	flag.Parse()

	sched, err := config.LoadSchedule(*feesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load fee schedule: %v\n", err)
		os.Exit(1)
	}

	resolver, err := fees.NewResolver(sched)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fee schedule rejected: %v\n", err)
		os.Exit(1)
	}

	venue, err := fees.ParseVenue(*venueFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	side, err := fees.ParseSide(*sideFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	vol := fees.VolumeRecord{
		Perps14d: mustDecimal("perps-volume", *perpsVolume),
		Spot14d:  mustDecimal("spot-volume", *spotVolume),
	}
	tc := fees.TradeContext{
		Asset:            assets.Normalize(*assetFlag),
		Leverage:         mustDecimal("leverage", *leverageFlag),
		ReducesImbalance: *reduces,
	}

	quote, err := resolver.ResolveQuote(vol, venue, side, tc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	out := map[string]any{
		"venue":         string(venue),
		"side":          string(side),
		"rate_bps":      quote.RateBps,
		"surcharge_bps": quote.SurchargeBps,
	}
	if quote.Tiered {
		out["tier"] = quote.TierName
		out["tier_rank"] = quote.TierRank
		out["weighted_volume"] = vol.Weighted()
	}
	if tc.Asset != "" {
		out["asset"] = tc.Asset
	}
	if n := mustDecimal("notional", *notional); n.IsPositive() {
		out["fee"] = quote.FeeFor(n)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
}

func mustDecimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -%s value %q: %v\n", name, value, err)
		os.Exit(2)
	}
	return d
}
