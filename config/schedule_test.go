package config

import (
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"feeflow/internal/fees"
)

const scheduleFixture = `surcharge_bps: "5"
tiers:
  - name: Wood
    floor: "0"
    perps: {taker_bps: "9.5", maker_bps: "6.5"}
    spot: {taker_bps: "7", maker_bps: "4"}
  - name: Stone
    floor: "5000000"
    perps: {taker_bps: "9", maker_bps: "6.2"}
    spot: {taker_bps: "6", maker_bps: "3.6"}
ostium:
  crypto:
    taker_bps: "10"
    maker_bps: "3"
    maker_max_leverage: "20"
  index_bps: "5"
  stock_bps: "5"
  fx_bps: "3"
  fx_overrides:
    USD/MXN: "5"
  commodities:
    XAU/USD: "3"
    CL/USD: "10"
`

func writeTempSchedule(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "fees-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadSchedule(t *testing.T) {
	path := writeTempSchedule(t, scheduleFixture)
	defer os.Remove(path)

	sched, err := LoadSchedule(path)
	if err != nil {
		t.Fatalf("LoadSchedule failed: %v", err)
	}
	if len(sched.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(sched.Tiers))
	}
	if sched.Tiers[1].Name != "Stone" || sched.Tiers[1].Rank != 1 {
		t.Errorf("unexpected second tier: %+v", sched.Tiers[1])
	}
	if !sched.Tiers[0].Perps.TakerBps.Equal(decimal.RequireFromString("9.5")) {
		t.Errorf("tier 0 perps taker = %s, want 9.5", sched.Tiers[0].Perps.TakerBps)
	}
	if !sched.SurchargeBps.Equal(decimal.NewFromInt(5)) {
		t.Errorf("surcharge = %s, want 5", sched.SurchargeBps)
	}
	if !sched.FXBps["USD/MXN"].Equal(decimal.NewFromInt(5)) {
		t.Errorf("fx override = %s, want 5", sched.FXBps["USD/MXN"])
	}
	if !sched.CommodityBps["CL/USD"].Equal(decimal.NewFromInt(10)) {
		t.Errorf("commodity rate = %s, want 10", sched.CommodityBps["CL/USD"])
	}
}

func TestLoadScheduleRejectsBadFloorOrder(t *testing.T) {
	// second floor below the first
	content := `surcharge_bps: "5"
tiers:
  - name: Wood
    floor: "0"
    perps: {taker_bps: "9.5", maker_bps: "6.5"}
    spot: {taker_bps: "7", maker_bps: "4"}
  - name: Stone
    floor: "0"
    perps: {taker_bps: "9", maker_bps: "6.2"}
    spot: {taker_bps: "6", maker_bps: "3.6"}
ostium:
  crypto:
    taker_bps: "10"
    maker_bps: "3"
    maker_max_leverage: "20"
  index_bps: "5"
  stock_bps: "5"
  fx_bps: "3"
  commodities:
    XAU/USD: "3"
`
	path := writeTempSchedule(t, content)
	defer os.Remove(path)

	if _, err := LoadSchedule(path); !errors.Is(err, fees.ErrConfig) {
		t.Fatalf("expected ErrConfig for unordered floors, got %v", err)
	}
}

func TestLoadScheduleRejectsMalformedRate(t *testing.T) {
	content := `surcharge_bps: "five"
tiers:
  - name: Wood
    floor: "0"
    perps: {taker_bps: "9.5", maker_bps: "6.5"}
    spot: {taker_bps: "7", maker_bps: "4"}
`
	path := writeTempSchedule(t, content)
	defer os.Remove(path)

	if _, err := LoadSchedule(path); !errors.Is(err, fees.ErrConfig) {
		t.Fatalf("expected ErrConfig for malformed rate, got %v", err)
	}
}

func TestLoadScheduleRejectsMissingFields(t *testing.T) {
	path := writeTempSchedule(t, "tiers: []\n")
	defer os.Remove(path)

	if _, err := LoadSchedule(path); !errors.Is(err, fees.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing surcharge, got %v", err)
	}
}
