package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"feeflow/internal/fees"
	"feeflow/logger"
	"feeflow/models"
)

// Store holds the 14 day rolling volume figures per account. Accounts the
// ledger has never reported resolve to a zero record, which places them in
// the lowest tier.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]fees.VolumeRecord

	updatesSeen int64
	rejected    int64

	log *logger.Log
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]fees.VolumeRecord),
		log:      logger.GetLogger(),
	}
}

// Lookup returns the current volume record for an account. Unknown accounts
// get a zero record.
func (s *Store) Lookup(account string) fees.VolumeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[account]
}

// Apply folds one ledger update into the store. Updates with an empty account
// or negative volumes are rejected.
func (s *Store) Apply(update models.VolumeUpdate) error {
	if update.Account == "" {
		atomic.AddInt64(&s.rejected, 1)
		return fmt.Errorf("%w: volume update without account", fees.ErrInvalidInput)
	}

	record := fees.VolumeRecord{Perps14d: update.Perps14d, Spot14d: update.Spot14d}
	if err := record.Validate(); err != nil {
		atomic.AddInt64(&s.rejected, 1)
		return fmt.Errorf("account %s: %w", update.Account, err)
	}

	s.mu.Lock()
	s.accounts[update.Account] = record
	s.mu.Unlock()

	atomic.AddInt64(&s.updatesSeen, 1)
	logger.IncrementLedgerUpdate(1)
	return nil
}

// ReplaceAll swaps the whole account table for the snapshot's contents.
// Invalid entries are skipped and logged rather than failing the snapshot.
// The number of accounts applied is returned.
func (s *Store) ReplaceAll(snapshot models.VolumeSnapshot) int {
	log := s.log.WithComponent("ledger")

	next := make(map[string]fees.VolumeRecord, len(snapshot.Accounts))
	for _, update := range snapshot.Accounts {
		record := fees.VolumeRecord{Perps14d: update.Perps14d, Spot14d: update.Spot14d}
		if update.Account == "" {
			atomic.AddInt64(&s.rejected, 1)
			log.Warn("snapshot entry without account, skipping")
			continue
		}
		if err := record.Validate(); err != nil {
			atomic.AddInt64(&s.rejected, 1)
			log.WithError(err).WithFields(logger.Fields{"account": update.Account}).Warn("snapshot entry rejected, skipping")
			continue
		}
		next[update.Account] = record
	}

	s.mu.Lock()
	s.accounts = next
	s.mu.Unlock()

	atomic.AddInt64(&s.updatesSeen, int64(len(next)))
	logger.IncrementLedgerUpdate(len(next))

	log.WithFields(logger.Fields{
		"accounts":     len(next),
		"generated_at": snapshot.GeneratedAt,
	}).Info("volume snapshot applied")
	return len(next)
}

// Len reports the number of accounts currently tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Stats returns counters for the periodic report.
func (s *Store) Stats() (updatesSeen, rejected int64) {
	return atomic.LoadInt64(&s.updatesSeen), atomic.LoadInt64(&s.rejected)
}
