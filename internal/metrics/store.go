package metrics

import "feeflow/logger"

// LedgerStoreMetrics holds size metrics for the in-memory volume ledger.
type LedgerStoreMetrics struct {
	Accounts    int
	UpdatesSeen int64
	Rejected    int64
}

// ReportLedgerStoreMetrics emits size metrics for the volume ledger.
func ReportLedgerStoreMetrics(log *logger.Log, sizes LedgerStoreMetrics) {
	log.WithComponent("ledger").WithFields(logger.Fields{
		"accounts":     sizes.Accounts,
		"updates_seen": sizes.UpdatesSeen,
		"rejected":     sizes.Rejected,
	}).Info("ledger store sizes")
}
