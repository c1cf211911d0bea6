// Package store defines the repository boundary over the in-memory
// reconciliation snapshot: payments, receivables, remittances,
// settlement events, and sync run history.
//
// There is no ambient singleton. Engines receive repositories
// explicitly, and each engine call is one transaction boundary: store
// write methods are atomic, and the memory implementation serializes
// writes behind a single lock for single-writer discipline over the
// shared aggregates.
package store

import (
	"ar-reconciliation-service/internal/models"
)

// PaymentRepository stores customer payments
type PaymentRepository interface {
	Get(id string) (*models.Payment, bool)
	Save(payment *models.Payment) error
	List() []*models.Payment
	ListByStatus(status models.PaymentStatus) []*models.Payment
}

// ReceivableRepository stores the receivable catalog synced from the ERP
type ReceivableRepository interface {
	Upsert(item *models.ReceivableItem) error
	List() []*models.ReceivableItem
}

// RemittanceRepository stores extracted remittance advice
type RemittanceRepository interface {
	Get(id string) (*models.Remittance, bool)
	ForPayment(paymentID string) (*models.Remittance, bool)
	Save(remittance *models.Remittance) error
}

// SettlementEventRepository stores the settlement event aggregate
type SettlementEventRepository interface {
	ByBankReference(bankReference string) []*models.SettlementEvent
	Open() []*models.SettlementEvent
	List() []*models.SettlementEvent
	Save(event *models.SettlementEvent) error
}

// SyncRunRepository stores ERP sync run history
type SyncRunRepository interface {
	Record(run *models.SyncRun) error
	Latest(entity models.EntityType) (*models.SyncRun, bool)
}

// Store bundles every repository behind one handle
type Store struct {
	Payments         PaymentRepository
	Receivables      ReceivableRepository
	Remittances      RemittanceRepository
	SettlementEvents SettlementEventRepository
	SyncRuns         SyncRunRepository
}
