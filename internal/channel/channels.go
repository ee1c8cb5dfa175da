package channel

import (
	"context"
	"sync"
	"time"

	"feeflow/logger"
	"feeflow/models"
)

type ChannelStats struct {
	AuditSent    int64
	AuditDropped int64
}

// Channels carries quote records from the API handlers to the audit writer.
// Sends never block: a full buffer drops the record and bumps the drop count.
type Channels struct {
	Audit chan models.QuoteRecord

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(auditBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Audit: make(chan models.QuoteRecord, auditBufferSize),
		log:   log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"audit_buffer_size": auditBufferSize,
	}).Info("audit channel initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Audit)
	c.log.WithComponent("channels").Info("audit channel closed")
}

func (c *Channels) IncrementAuditSent() {
	c.statsMutex.Lock()
	c.stats.AuditSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementAuditDropped() {
	c.statsMutex.Lock()
	c.stats.AuditDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) SendAudit(ctx context.Context, rec models.QuoteRecord) bool {
	select {
	case c.Audit <- rec:
		c.IncrementAuditSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementAuditDropped()
		return false
	}
}

// StartMetricsReporting samples the audit buffer occupancy once a second and
// feeds it into the periodic report until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.RecordChannelMessage("audit", len(c.Audit))
			}
		}
	}()
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
