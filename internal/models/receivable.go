package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableType distinguishes invoices from credit memos
type ReceivableType string

const (
	// ReceivableInvoice is a positive-amount open receivable
	ReceivableInvoice ReceivableType = "INVOICE"
	// ReceivableCreditMemo is a negative-amount credit owed to the customer
	ReceivableCreditMemo ReceivableType = "CREDIT_MEMO"
)

// String returns the string representation of ReceivableType
func (t ReceivableType) String() string {
	return string(t)
}

// IsValid checks if the receivable type is valid
func (t ReceivableType) IsValid() bool {
	return t == ReceivableInvoice || t == ReceivableCreditMemo
}

// ReceivableStatus is the open/closed state of a receivable
type ReceivableStatus string

const (
	ReceivableOpen   ReceivableStatus = "OPEN"
	ReceivableClosed ReceivableStatus = "CLOSED"
)

// ReceivableItem is an outstanding invoice or credit memo synced from the
// ERP. Immutable except for the open/closed status transition.
type ReceivableItem struct {
	ID         string           `json:"id"`
	Identifier string           `json:"identifier"`
	Type       ReceivableType   `json:"type"`
	Amount     decimal.Decimal  `json:"amount"`
	CustomerID string           `json:"customer_id"`
	Status     ReceivableStatus `json:"status"`
}

// NewReceivableItem creates an open receivable. Credit memo amounts are
// carried negative; invoice amounts positive.
func NewReceivableItem(identifier string, itemType ReceivableType, amount decimal.Decimal, customerID string) *ReceivableItem {
	return &ReceivableItem{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Type:       itemType,
		Amount:     amount,
		CustomerID: customerID,
		Status:     ReceivableOpen,
	}
}

// Validate performs basic validation on the ReceivableItem
func (r *ReceivableItem) Validate() error {
	if strings.TrimSpace(r.Identifier) == "" {
		return fmt.Errorf("receivable identifier cannot be empty")
	}

	if !r.Type.IsValid() {
		return fmt.Errorf("invalid receivable type: %s", r.Type)
	}

	if r.Amount.IsZero() {
		return fmt.Errorf("receivable amount cannot be zero")
	}

	if r.Type == ReceivableInvoice && r.Amount.IsNegative() {
		return fmt.Errorf("invoice amount must be positive, got %s", r.Amount)
	}

	if r.Type == ReceivableCreditMemo && r.Amount.IsPositive() {
		return fmt.Errorf("credit memo amount must be negative, got %s", r.Amount)
	}

	return nil
}

// IsOpen reports whether the receivable is still open for application
func (r *ReceivableItem) IsOpen() bool {
	return r.Status == ReceivableOpen
}

// Close marks the receivable closed. The only legal mutation.
func (r *ReceivableItem) Close() {
	r.Status = ReceivableClosed
}

// AbsoluteAmount returns the unsigned open amount
func (r *ReceivableItem) AbsoluteAmount() decimal.Decimal {
	return r.Amount.Abs()
}

// String returns a string representation of the ReceivableItem
func (r *ReceivableItem) String() string {
	return fmt.Sprintf("ReceivableItem{%s %s, Amount: %s, Customer: %s, Status: %s}",
		r.Type, r.Identifier, r.Amount.String(), r.CustomerID, r.Status)
}

// RemittanceLinkStatus describes how a remittance relates to payments
type RemittanceLinkStatus string

const (
	RemittanceLinked     RemittanceLinkStatus = "LINKED"
	RemittanceUnlinked   RemittanceLinkStatus = "UNLINKED"
	RemittancePartial    RemittanceLinkStatus = "PARTIAL"
	RemittanceMultiMatch RemittanceLinkStatus = "MULTI_MATCH"
)

// RemittanceReference is one already-extracted line item of a remittance
// advice: a receivable identifier and the amount the payer applied to it.
type RemittanceReference struct {
	Identifier string          `json:"identifier"`
	Amount     decimal.Decimal `json:"amount"`
	CreditMemo bool            `json:"credit_memo,omitempty"`
}

// Remittance is structured remittance advice extracted upstream. At most
// one payment links to a remittance.
type Remittance struct {
	ID         string                `json:"id"`
	PaymentID  string                `json:"payment_id,omitempty"`
	References []RemittanceReference `json:"references"`
	LinkStatus RemittanceLinkStatus  `json:"link_status"`
	Confidence float64               `json:"confidence"`
}

// Validate performs basic validation on the Remittance
func (r *Remittance) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("remittance ID cannot be empty")
	}

	if len(r.References) == 0 {
		return fmt.Errorf("remittance must carry at least one reference")
	}

	for i, ref := range r.References {
		if strings.TrimSpace(ref.Identifier) == "" {
			return fmt.Errorf("remittance reference %d has empty identifier", i)
		}
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("remittance confidence must be between 0 and 1: %f", r.Confidence)
	}

	return nil
}

// IsUsable reports whether the remittance is linked well enough for the
// decision engine to prefer its references over tokenized memo text.
func (r *Remittance) IsUsable() bool {
	return r.LinkStatus == RemittanceLinked
}

// InvoiceTotal sums the invoice references
func (r *Remittance) InvoiceTotal() decimal.Decimal {
	total := decimal.Zero
	for _, ref := range r.References {
		if !ref.CreditMemo {
			total = total.Add(ref.Amount)
		}
	}
	return total
}

// CreditMemoTotal sums the credit memo references. Credit amounts are
// carried negative, so the total is zero or negative.
func (r *Remittance) CreditMemoTotal() decimal.Decimal {
	total := decimal.Zero
	for _, ref := range r.References {
		if ref.CreditMemo {
			total = total.Add(ref.Amount)
		}
	}
	return total
}

// HasCreditMemos reports whether any reference is a credit memo
func (r *Remittance) HasCreditMemos() bool {
	for _, ref := range r.References {
		if ref.CreditMemo {
			return true
		}
	}
	return false
}
