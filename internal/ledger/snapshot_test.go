package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	appconfig "feeflow/config"
)

func TestParseSnapshot(t *testing.T) {
	data := []byte(`{
		"generated_at": "2026-08-29T00:00:00Z",
		"accounts": [
			{"account": "0xabc", "perps_volume_14d": "1000000", "spot_volume_14d": "250000", "as_of": "2026-08-28T23:59:00Z"},
			{"account": "0xdef", "perps_volume_14d": 0, "spot_volume_14d": 0, "as_of": "2026-08-28T23:59:00Z"}
		]
	}`)

	snapshot, err := parseSnapshot(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(snapshot.Accounts))
	}
	if snapshot.Accounts[0].Perps14d.Cmp(decimal.NewFromInt(1_000_000)) != 0 {
		t.Fatalf("unexpected perps volume: %s", snapshot.Accounts[0].Perps14d)
	}
}

func TestParseSnapshotInvalidJSON(t *testing.T) {
	if _, err := parseSnapshot([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
}

func TestSnapshotKey(t *testing.T) {
	f := &SnapshotFetcher{config: &appconfig.Config{}}
	f.config.Ledger.Snapshot.KeyPrefix = "volumes/"
	f.config.Ledger.Snapshot.TimeFormat = "2006-01-02"

	now := time.Date(2026, 8, 29, 15, 4, 5, 0, time.UTC)
	if got := f.snapshotKey(now); got != "volumes/date=2026-08-29.json" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestUntilNextMidnightUTC(t *testing.T) {
	now := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	if got := untilNextMidnightUTC(now); got != time.Hour {
		t.Fatalf("expected 1h until midnight, got %s", got)
	}

	exactly := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if got := untilNextMidnightUTC(exactly); got != 24*time.Hour {
		t.Fatalf("expected 24h from midnight, got %s", got)
	}
}
