package metrics

import (
	"strings"
	"sync/atomic"

	"feeflow/config"
)

// Feature identifies a metric family that can be toggled through the
// metrics section of the configuration file.
type Feature string

const (
	// FeatureChannelSize gates the periodic channel occupancy gauges.
	FeatureChannelSize Feature = "channel_size"
	// FeatureQuoteCounters gates the per-quote counters.
	FeatureQuoteCounters Feature = "quote_counters"
)

var (
	channelSizeEnabled   atomic.Bool
	quoteCountersEnabled atomic.Bool
)

func init() {
	channelSizeEnabled.Store(true)
	quoteCountersEnabled.Store(true)
}

// Configure applies the metrics feature toggles from configuration.
func Configure(cfg config.MetricsConfig) {
	channelSizeEnabled.Store(cfg.ChannelSize)
	quoteCountersEnabled.Store(cfg.QuoteCounters)
}

// IsFeatureEnabled reports whether a metric family is currently enabled.
func IsFeatureEnabled(f Feature) bool {
	switch f {
	case FeatureChannelSize:
		return channelSizeEnabled.Load()
	case FeatureQuoteCounters:
		return quoteCountersEnabled.Load()
	default:
		return true
	}
}

// metricAllowed maps a metric name onto its feature gate. Names outside the
// gated families are always emitted.
func metricAllowed(name string) bool {
	switch {
	case strings.HasSuffix(name, "_buffer_length"):
		return IsFeatureEnabled(FeatureChannelSize)
	case strings.HasPrefix(name, "quote"):
		return IsFeatureEnabled(FeatureQuoteCounters)
	default:
		return true
	}
}
