package metrics

import (
	"context"
	"time"

	"feeflow/internal/channel"
	"feeflow/logger"
)

// StartChannelSizeMetrics emits occupancy metrics for the audit channel buffer.
// Metrics are logged every `interval` until the context is cancelled. When
// interval <=0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if !IsFeatureEnabled(FeatureChannelSize) {
		return
	}
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "channel_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if channels.Audit != nil {
					EmitMetric(log, component, "audit_buffer_length", len(channels.Audit), "gauge", logger.Fields{
						"buffer":   "audit",
						"capacity": cap(channels.Audit),
					})
				}
			}
		}
	}()
}
