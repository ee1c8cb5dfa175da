package metrics

import (
	"testing"

	"feeflow/logger"
)

func TestReportLedgerStoreMetrics(t *testing.T) {
	log := logger.GetLogger()
	sizes := LedgerStoreMetrics{Accounts: 12, UpdatesSeen: 40, Rejected: 1}
	ReportLedgerStoreMetrics(log, sizes)
}

func TestReportWriter(t *testing.T) {
	log := logger.GetLogger()
	stats := WriterStats{
		BatchesWritten: 4,
		FilesWritten:   4,
		BytesWritten:   8192,
		ErrorsCount:    0,
		ChannelLen:     3,
		ChannelCap:     1024,
	}
	ReportWriter(log, "audit_writer", stats)
}

func TestReportWriterWithErrors(t *testing.T) {
	log := logger.GetLogger()
	stats := WriterStats{
		BatchesWritten: 2,
		FilesWritten:   2,
		ErrorsCount:    1,
	}
	ReportWriter(log, "audit_writer", stats)
}
