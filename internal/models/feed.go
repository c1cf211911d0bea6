package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankTransactionStage distinguishes preliminary observations from final
// settled transactions in the bank feed.
type BankTransactionStage string

const (
	BankStagePreliminary BankTransactionStage = "PRELIMINARY"
	BankStageFinal       BankTransactionStage = "FINAL"
)

// BankDirection is the direction of funds from the bank's perspective
type BankDirection string

const (
	BankDirectionCredit BankDirection = "CREDIT"
	BankDirectionDebit  BankDirection = "DEBIT"
)

// BankTransaction is a bank-feed record keyed by bank reference. The same
// bank reference may appear on several preliminary records (lockbox
// batches) and on one final record.
type BankTransaction struct {
	BankReference string               `json:"bank_reference"`
	PaymentID     string               `json:"payment_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Direction     BankDirection        `json:"direction"`
	Method        string               `json:"method"`
	ObservedAt    time.Time            `json:"observed_at"`
	Stage         BankTransactionStage `json:"stage"`
}

// Validate performs basic validation on the BankTransaction
func (bt *BankTransaction) Validate() error {
	if strings.TrimSpace(bt.BankReference) == "" {
		return fmt.Errorf("bank reference cannot be empty")
	}

	if bt.Amount.IsZero() {
		return fmt.Errorf("bank transaction amount cannot be zero")
	}

	if bt.ObservedAt.IsZero() {
		return fmt.Errorf("bank transaction observed time cannot be zero")
	}

	if bt.Stage != BankStagePreliminary && bt.Stage != BankStageFinal {
		return fmt.Errorf("invalid bank transaction stage: %s", bt.Stage)
	}

	return nil
}

// SettlementStatus is the lifecycle state of a settlement event
type SettlementStatus string

const (
	// SettlementPending means a preliminary observation awaits its final transaction
	SettlementPending SettlementStatus = "PENDING"
	// SettlementFinal means the final transaction reconciled the observation
	SettlementFinal SettlementStatus = "FINAL"
	// SettlementFailed means no final transaction arrived within the ghost threshold
	SettlementFailed SettlementStatus = "FAILED"
)

// SettlementEvent tracks one preliminary bank observation through to
// final settlement or failure. Events sharing a bank reference reconcile
// independently against one shared final transaction.
type SettlementEvent struct {
	ID            string           `json:"id"`
	PaymentID     string           `json:"payment_id"`
	BankReference string           `json:"bank_reference"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        SettlementStatus `json:"status"`
	FirstSeenAt   time.Time        `json:"first_seen_at"`
	LastCheckedAt time.Time        `json:"last_checked_at"`
	Reason        string           `json:"reason,omitempty"`
}

// NewSettlementEvent creates a pending settlement event from a
// preliminary bank observation.
func NewSettlementEvent(paymentID, bankReference string, amount decimal.Decimal, firstSeen time.Time) *SettlementEvent {
	return &SettlementEvent{
		ID:            uuid.NewString(),
		PaymentID:     paymentID,
		BankReference: bankReference,
		Amount:        amount,
		Status:        SettlementPending,
		FirstSeenAt:   firstSeen,
		LastCheckedAt: firstSeen,
	}
}

// IsClosed reports whether the event reached a terminal state
func (e *SettlementEvent) IsClosed() bool {
	return e.Status == SettlementFinal || e.Status == SettlementFailed
}

// AgeHours computes the event age from first observation. Open events age
// against now; closed events stop aging at LastCheckedAt.
func (e *SettlementEvent) AgeHours(now time.Time) float64 {
	end := now
	if e.IsClosed() {
		end = e.LastCheckedAt
	}
	return end.Sub(e.FirstSeenAt).Hours()
}

// String returns a string representation of the SettlementEvent
func (e *SettlementEvent) String() string {
	return fmt.Sprintf("SettlementEvent{Payment: %s, BankRef: %s, Status: %s}",
		e.PaymentID, e.BankReference, e.Status)
}

// EntityType identifies an ERP entity type covered by sync runs
type EntityType string

const (
	EntityInvoices    EntityType = "INVOICES"
	EntityCreditMemos EntityType = "CREDIT_MEMOS"
	EntityPayments    EntityType = "PAYMENTS"
	EntityCustomers   EntityType = "CUSTOMERS"
)

// AllEntityTypes lists every entity type the integrity guard watches
func AllEntityTypes() []EntityType {
	return []EntityType{EntityInvoices, EntityCreditMemos, EntityPayments, EntityCustomers}
}

// SyncStatus is the outcome of one sync run
type SyncStatus string

const (
	SyncSuccess SyncStatus = "SUCCESS"
	SyncPartial SyncStatus = "PARTIAL"
	SyncFailed  SyncStatus = "FAILED"
)

// SyncRun records one upstream ERP sync attempt for an entity type
type SyncRun struct {
	ID            string     `json:"id"`
	Entity        EntityType `json:"entity"`
	Status        SyncStatus `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   time.Time  `json:"completed_at"`
	RecordsSynced int        `json:"records_synced"`
	RecordsFailed int        `json:"records_failed"`
	Errors        []string   `json:"errors,omitempty"`
	WatermarkFrom time.Time  `json:"watermark_from"`
	WatermarkTo   time.Time  `json:"watermark_to"`
}

// Validate performs basic validation on the SyncRun
func (sr *SyncRun) Validate() error {
	if sr.Entity == "" {
		return fmt.Errorf("sync run entity cannot be empty")
	}

	switch sr.Status {
	case SyncSuccess, SyncPartial, SyncFailed:
	default:
		return fmt.Errorf("invalid sync status: %s", sr.Status)
	}

	if sr.CompletedAt.IsZero() {
		return fmt.Errorf("sync run completion time cannot be zero")
	}

	if sr.RecordsFailed < 0 || sr.RecordsSynced < 0 {
		return fmt.Errorf("sync run record counts cannot be negative")
	}

	return nil
}

// Healthy reports whether the run completed without failures
func (sr *SyncRun) Healthy() bool {
	return sr.Status == SyncSuccess
}

// Age returns how long ago the run completed
func (sr *SyncRun) Age(now time.Time) time.Duration {
	return now.Sub(sr.CompletedAt)
}
