// Package snapshot loads reconciliation working sets from JSON files:
// payments, the receivable catalog, remittance advice, bank
// transactions, and sync run history in one document.
//
// The snapshot is the fixture and hand-off format between the upstream
// ingestion pipeline and this service. Loading validates every record
// before anything is applied to the store, so a bad file never leaves a
// half-populated working set.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/store"
	"ar-reconciliation-service/pkg/errors"
	"ar-reconciliation-service/pkg/logger"
)

// Snapshot is the on-disk working set document
type Snapshot struct {
	Payments         []*models.Payment         `json:"payments,omitempty"`
	Receivables      []*models.ReceivableItem  `json:"receivables,omitempty"`
	Remittances      []*models.Remittance      `json:"remittances,omitempty"`
	BankTransactions []*models.BankTransaction `json:"bank_transactions,omitempty"`
	SyncRuns         []*models.SyncRun         `json:"sync_runs,omitempty"`
}

// Counts summarizes snapshot contents
type Counts struct {
	Payments         int `json:"payments"`
	Receivables      int `json:"receivables"`
	Remittances      int `json:"remittances"`
	BankTransactions int `json:"bank_transactions"`
	SyncRuns         int `json:"sync_runs"`
}

// Counts returns per-section record counts
func (s *Snapshot) Counts() Counts {
	return Counts{
		Payments:         len(s.Payments),
		Receivables:      len(s.Receivables),
		Remittances:      len(s.Remittances),
		BankTransactions: len(s.BankTransactions),
		SyncRuns:         len(s.SyncRuns),
	}
}

// Validate checks every record in the snapshot. Payments without an
// explicit status default to New.
func (s *Snapshot) Validate() error {
	for i, p := range s.Payments {
		if p.Status == "" {
			p.Status = models.PaymentStatusNew
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("payment %d (%s): %w", i, p.ID, err)
		}
	}
	for i, item := range s.Receivables {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("receivable %d (%s): %w", i, item.Identifier, err)
		}
	}
	for i, r := range s.Remittances {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("remittance %d (%s): %w", i, r.ID, err)
		}
	}
	for i, txn := range s.BankTransactions {
		if err := txn.Validate(); err != nil {
			return fmt.Errorf("bank transaction %d (%s): %w", i, txn.BankReference, err)
		}
	}
	for i, run := range s.SyncRuns {
		if err := run.Validate(); err != nil {
			return fmt.Errorf("sync run %d (%s): %w", i, run.ID, err)
		}
	}
	return nil
}

// Load reads and validates a snapshot file
func Load(path string) (*Snapshot, error) {
	log := logger.GetGlobalLogger().WithComponent("snapshot")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeSnapshotDecode, path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.FileError(errors.CodeSnapshotDecode, path, err)
	}

	if err := snap.Validate(); err != nil {
		return nil, errors.FileError(errors.CodeSnapshotDecode, path, err).
			WithContext("validation", err.Error())
	}

	counts := snap.Counts()
	log.WithFields(logger.Fields{
		"path":         path,
		"payments":     counts.Payments,
		"receivables":  counts.Receivables,
		"remittances":  counts.Remittances,
		"transactions": counts.BankTransactions,
		"sync_runs":    counts.SyncRuns,
	}).Info("Snapshot loaded")

	return &snap, nil
}

// Apply populates the store from the snapshot. Payments, receivables
// and remittances upsert by their own keys; sync runs append to
// history. Bank transactions are not applied here — they flow through
// the settlement tracker so lifecycle rules hold.
func (s *Snapshot) Apply(st *store.Store) error {
	for _, item := range s.Receivables {
		if err := st.Receivables.Upsert(item); err != nil {
			return err
		}
	}
	for _, p := range s.Payments {
		if err := st.Payments.Save(p); err != nil {
			return err
		}
	}
	for _, r := range s.Remittances {
		if err := st.Remittances.Save(r); err != nil {
			return err
		}
	}
	for _, run := range s.SyncRuns {
		if err := st.SyncRuns.Record(run); err != nil {
			return err
		}
	}
	return nil
}
