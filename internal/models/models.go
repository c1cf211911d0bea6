// Package models defines the core domain types for accounts-receivable
// payment reconciliation: customer payments, open receivables, remittance
// advice, bank settlement events, and ERP sync run records.
//
// All monetary values use decimal.Decimal to avoid floating point drift.
// Types in this package carry no behavior beyond validation, state
// transition checks, and derived accessors; matching and classification
// logic lives in the engine packages.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a customer payment
type PaymentStatus string

const (
	// PaymentStatusNew is the initial state of an ingested payment
	PaymentStatusNew PaymentStatus = "NEW"
	// PaymentStatusAutoMatched marks a payment matched without human intervention
	PaymentStatusAutoMatched PaymentStatus = "AUTO_MATCHED"
	// PaymentStatusException marks a payment parked for manual resolution
	PaymentStatusException PaymentStatus = "EXCEPTION"
	// PaymentStatusPendingToPost marks a matched payment awaiting ERP posting
	PaymentStatusPendingToPost PaymentStatus = "PENDING_TO_POST"
	// PaymentStatusSettlementPending marks a payment whose bank settlement is not yet final
	PaymentStatusSettlementPending PaymentStatus = "SETTLEMENT_PENDING"
	// PaymentStatusPosted marks a payment posted to the ERP; terminal
	PaymentStatusPosted PaymentStatus = "POSTED"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid checks if the payment status is a known state
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusNew, PaymentStatusAutoMatched, PaymentStatusException,
		PaymentStatusPendingToPost, PaymentStatusSettlementPending, PaymentStatusPosted:
		return true
	}
	return false
}

// IsTerminal reports whether the status allows no further transitions
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPosted
}

// CanTransitionTo reports whether a transition from s to next is legal.
// Legal paths: New -> AutoMatched|Exception|PendingToPost|SettlementPending,
// AutoMatched -> PendingToPost, PendingToPost -> Posted|Exception,
// SettlementPending -> Posted|Exception, Exception -> PendingToPost.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusNew:
		return next == PaymentStatusAutoMatched || next == PaymentStatusException ||
			next == PaymentStatusPendingToPost || next == PaymentStatusSettlementPending
	case PaymentStatusAutoMatched:
		return next == PaymentStatusPendingToPost
	case PaymentStatusPendingToPost:
		return next == PaymentStatusPosted || next == PaymentStatusException
	case PaymentStatusSettlementPending:
		return next == PaymentStatusPosted || next == PaymentStatusException
	case PaymentStatusException:
		return next == PaymentStatusPendingToPost
	}
	return false
}

// ExceptionType is the legacy single-level exception classification kept
// for compatibility with upstream systems. The two-level taxonomy derived
// from it is owned by the taxonomy resolver.
type ExceptionType string

const (
	// ExceptionNone indicates the payment carries no exception
	ExceptionNone ExceptionType = ""
	// ExceptionInvalidRef indicates no receivable candidate was found
	ExceptionInvalidRef ExceptionType = "INVALID_REF"
	// ExceptionAmbiguousMatch indicates multiple near-equal candidates
	ExceptionAmbiguousMatch ExceptionType = "AMBIGUOUS_MATCH"
	// ExceptionShortPay indicates a valid reference paid below the open amount
	ExceptionShortPay ExceptionType = "SHORT_PAY"
	// ExceptionOverPay indicates a valid reference paid above the open amount
	ExceptionOverPay ExceptionType = "OVER_PAY"
)

// CoreExceptionType is the broad category of the two-level exception taxonomy
type CoreExceptionType string

const (
	CoreExtraction      CoreExceptionType = "EXTRACTION"
	CoreReceivableState CoreExceptionType = "RECEIVABLE_STATE"
	CoreSettlement      CoreExceptionType = "SETTLEMENT"
	CoreApplication     CoreExceptionType = "APPLICATION"
	CoreMatching        CoreExceptionType = "MATCHING"
)

// ReasonCode is the specific cause within a core exception type
type ReasonCode string

const (
	ReasonRemitParseFailed   ReasonCode = "REMIT_PARSE_FAILED"
	ReasonInvoiceClosed      ReasonCode = "INVOICE_CLOSED"
	ReasonCreditMemoClosed   ReasonCode = "CREDIT_MEMO_CLOSED"
	ReasonSettlementPending  ReasonCode = "SETTLEMENT_PENDING"
	ReasonACHReturn          ReasonCode = "ACH_RETURN"
	ReasonGhostPayment       ReasonCode = "GHOST_PAYMENT"
	ReasonOnAccount          ReasonCode = "ON_ACCOUNT"
	ReasonJERequired         ReasonCode = "JE_REQUIRED"
	ReasonNoReferenceMatch   ReasonCode = "NO_REFERENCE_MATCH"
	ReasonAmbiguousReference ReasonCode = "AMBIGUOUS_REFERENCE"
	ReasonShortPayment       ReasonCode = "SHORT_PAYMENT"
	ReasonOverPayment        ReasonCode = "OVER_PAYMENT"
)

// Classification is the resolver-owned (core type, reason code, label) triple
type Classification struct {
	CoreType   CoreExceptionType `json:"core_type"`
	ReasonCode ReasonCode        `json:"reason_code"`
	Label      string            `json:"label"`
}

// IsZero reports whether no classification has been assigned yet
func (c Classification) IsZero() bool {
	return c.CoreType == "" && c.ReasonCode == "" && c.Label == ""
}

// IsValid reports whether the triple is fully populated
func (c Classification) IsValid() bool {
	return c.CoreType != "" && c.ReasonCode != "" && c.Label != ""
}

// String returns a compact representation of the classification
func (c Classification) String() string {
	if c.IsZero() {
		return "unclassified"
	}
	return fmt.Sprintf("%s/%s", c.CoreType, c.ReasonCode)
}

// ResolutionState tracks operator workflow on an exception
type ResolutionState string

const (
	ResolutionNone     ResolutionState = ""
	ResolutionOpen     ResolutionState = "OPEN"
	ResolutionResolved ResolutionState = "RESOLVED"
)

// MatchSignal is one weighted contribution to a match decision
type MatchSignal struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// MatchExplanation captures why a payment was matched or excepted, in a
// form reproducible from the same inputs for audit purposes.
type MatchExplanation struct {
	Summary    string        `json:"summary"`
	Signals    []MatchSignal `json:"signals,omitempty"`
	Tokens     []string      `json:"tokens,omitempty"`
	Confidence int           `json:"confidence"`
}

// PostingLine is a single application of payment funds to a receivable
type PostingLine struct {
	ReceivableIdentifier string          `json:"receivable_identifier"`
	Amount               decimal.Decimal `json:"amount"`
	CreditMemo           bool            `json:"credit_memo,omitempty"`
}

// ActivityEntry is one append-only audit log record on a payment
type ActivityEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// PaymentSettlement holds the settlement-facing fields of a payment
type PaymentSettlement struct {
	Status        SettlementStatus `json:"status,omitempty"`
	FirstSeenAt   *time.Time       `json:"first_seen_at,omitempty"`
	LastCheckedAt *time.Time       `json:"last_checked_at,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// Payment represents an incoming customer payment under reconciliation
type Payment struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	ReceivedAt time.Time       `json:"received_at"`
	PayerText  string          `json:"payer_text"`
	MemoText   string          `json:"memo_text"`
	CustomerID string          `json:"customer_id,omitempty"`

	Status          PaymentStatus   `json:"status"`
	ExceptionType   ExceptionType   `json:"exception_type,omitempty"`
	Classification  Classification  `json:"classification,omitempty"`
	ResolutionState ResolutionState `json:"resolution_state,omitempty"`

	// Signals feeding the taxonomy resolver; set independently by
	// upstream stages and never interpreted outside the resolver.
	RemitParseError       bool `json:"remit_parse_error,omitempty"`
	InvoiceStatusIssue    bool `json:"invoice_status_issue,omitempty"`
	CreditMemoStatusIssue bool `json:"credit_memo_status_issue,omitempty"`
	OnAccount             bool `json:"on_account,omitempty"`
	JERequired            bool `json:"je_required,omitempty"`

	Settlement   PaymentSettlement `json:"settlement,omitempty"`
	Explanation  *MatchExplanation `json:"explanation,omitempty"`
	PostingLines []PostingLine     `json:"posting_lines,omitempty"`
	PostingRef   string            `json:"posting_ref,omitempty"`
	RemittanceID string            `json:"remittance_id,omitempty"`

	Activity []ActivityEntry `json:"activity,omitempty"`
}

// NewPayment creates a payment in the New state
func NewPayment(amount decimal.Decimal, currency string, receivedAt time.Time, payerText, memoText string) *Payment {
	return &Payment{
		ID:         uuid.NewString(),
		Amount:     amount,
		Currency:   currency,
		ReceivedAt: receivedAt,
		PayerText:  payerText,
		MemoText:   memoText,
		Status:     PaymentStatusNew,
	}
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	if p.Amount.IsZero() {
		return fmt.Errorf("payment amount cannot be zero")
	}

	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("payment currency cannot be empty")
	}

	if p.ReceivedAt.IsZero() {
		return fmt.Errorf("payment received time cannot be zero")
	}

	if !p.Status.IsValid() {
		return fmt.Errorf("invalid payment status: %s", p.Status)
	}

	return nil
}

// IsMutable reports whether match and classification fields may still
// change. Once posted, only the activity log may grow.
func (p *Payment) IsMutable() bool {
	return p.Status != PaymentStatusPosted
}

// IsEligibleForEvaluation reports whether the decision engine may act on
// the payment. Re-evaluating an already-decided payment is a no-op.
func (p *Payment) IsEligibleForEvaluation() bool {
	return p.Status == PaymentStatusNew
}

// TransitionTo moves the payment to the next status after checking the
// transition is legal.
func (p *Payment) TransitionTo(next PaymentStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("invalid payment status: %s", next)
	}

	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal payment status transition %s -> %s", p.Status, next)
	}

	p.Status = next
	return nil
}

// LogActivity appends an audit entry. Permitted in every state, including
// Posted.
func (p *Payment) LogActivity(at time.Time, message string) {
	p.Activity = append(p.Activity, ActivityEntry{
		ID:      uuid.NewString(),
		At:      at,
		Message: message,
	})
}

// ReferenceText returns the concatenated free text used for token
// extraction: memo first, then payer name.
func (p *Payment) ReferenceText() string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(p.MemoText) != "" {
		parts = append(parts, p.MemoText)
	}
	if strings.TrimSpace(p.PayerText) != "" {
		parts = append(parts, p.PayerText)
	}
	return strings.Join(parts, " ")
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Amount: %s %s, Status: %s}",
		p.ID, p.Amount.String(), p.Currency, p.Status)
}

// ParseMoney parses a monetary value from string, tolerating currency
// symbols and thousand separators commonly present in bank feeds.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}

	return d, nil
}

// AmountsWithinTolerance compares two amounts with an absolute tolerance
func AmountsWithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
