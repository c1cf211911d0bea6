package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"new to auto matched", PaymentStatusNew, PaymentStatusAutoMatched, true},
		{"new to exception", PaymentStatusNew, PaymentStatusException, true},
		{"new to pending to post", PaymentStatusNew, PaymentStatusPendingToPost, true},
		{"new to settlement pending", PaymentStatusNew, PaymentStatusSettlementPending, true},
		{"new to posted", PaymentStatusNew, PaymentStatusPosted, false},
		{"auto matched to pending to post", PaymentStatusAutoMatched, PaymentStatusPendingToPost, true},
		{"pending to post to posted", PaymentStatusPendingToPost, PaymentStatusPosted, true},
		{"settlement pending to posted", PaymentStatusSettlementPending, PaymentStatusPosted, true},
		{"settlement pending to exception", PaymentStatusSettlementPending, PaymentStatusException, true},
		{"exception to pending to post", PaymentStatusException, PaymentStatusPendingToPost, true},
		{"posted is terminal", PaymentStatusPosted, PaymentStatusException, false},
		{"posted to new", PaymentStatusPosted, PaymentStatusNew, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestPaymentTransitionTo(t *testing.T) {
	p := NewPayment(decimal.NewFromInt(100), "USD", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "ACME CORP", "INV-1001")

	if err := p.TransitionTo(PaymentStatusPendingToPost); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}

	if err := p.TransitionTo(PaymentStatusAutoMatched); err == nil {
		t.Error("expected illegal transition PendingToPost -> AutoMatched to fail")
	}

	if err := p.TransitionTo(PaymentStatusPosted); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}

	if p.IsMutable() {
		t.Error("posted payment must not be mutable")
	}

	// Activity log stays append-only after posting.
	p.LogActivity(time.Now(), "manual note")
	if len(p.Activity) != 1 {
		t.Errorf("expected 1 activity entry after posting, got %d", len(p.Activity))
	}
}

func TestPaymentValidate(t *testing.T) {
	valid := NewPayment(decimal.NewFromFloat(42.50), "USD", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "payer", "memo")
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid payment, got error: %v", err)
	}

	zeroAmount := NewPayment(decimal.Zero, "USD", time.Now(), "payer", "memo")
	if err := zeroAmount.Validate(); err == nil {
		t.Error("expected zero amount payment to fail validation")
	}

	noCurrency := NewPayment(decimal.NewFromInt(10), "", time.Now(), "payer", "memo")
	if err := noCurrency.Validate(); err == nil {
		t.Error("expected payment without currency to fail validation")
	}
}

func TestPaymentReferenceText(t *testing.T) {
	p := NewPayment(decimal.NewFromInt(10), "USD", time.Now(), "ACME CORP", "Payment advice INV-51201")
	if got := p.ReferenceText(); got != "Payment advice INV-51201 ACME CORP" {
		t.Errorf("unexpected reference text: %q", got)
	}

	noMemo := NewPayment(decimal.NewFromInt(10), "USD", time.Now(), "ACME CORP", "  ")
	if got := noMemo.ReferenceText(); got != "ACME CORP" {
		t.Errorf("unexpected reference text without memo: %q", got)
	}
}

func TestReceivableItemValidate(t *testing.T) {
	invoice := NewReceivableItem("INV-51201", ReceivableInvoice, decimal.NewFromInt(42000), "CUST-1")
	if err := invoice.Validate(); err != nil {
		t.Errorf("expected valid invoice, got error: %v", err)
	}

	negativeInvoice := NewReceivableItem("INV-1", ReceivableInvoice, decimal.NewFromInt(-100), "CUST-1")
	if err := negativeInvoice.Validate(); err == nil {
		t.Error("expected negative invoice amount to fail validation")
	}

	memo := NewReceivableItem("CM-9", ReceivableCreditMemo, decimal.NewFromInt(-250), "CUST-1")
	if err := memo.Validate(); err != nil {
		t.Errorf("expected valid credit memo, got error: %v", err)
	}

	positiveMemo := NewReceivableItem("CM-10", ReceivableCreditMemo, decimal.NewFromInt(250), "CUST-1")
	if err := positiveMemo.Validate(); err == nil {
		t.Error("expected positive credit memo amount to fail validation")
	}
}

func TestReceivableItemClose(t *testing.T) {
	item := NewReceivableItem("INV-1", ReceivableInvoice, decimal.NewFromInt(100), "CUST-1")
	if !item.IsOpen() {
		t.Fatal("new receivable should be open")
	}

	item.Close()
	if item.IsOpen() {
		t.Error("closed receivable reported as open")
	}
}

func TestRemittanceTotals(t *testing.T) {
	r := &Remittance{
		ID: "REM-1",
		References: []RemittanceReference{
			{Identifier: "INV-1", Amount: decimal.NewFromInt(1000)},
			{Identifier: "INV-2", Amount: decimal.NewFromInt(500)},
			{Identifier: "CM-1", Amount: decimal.NewFromInt(-200), CreditMemo: true},
		},
		LinkStatus: RemittanceLinked,
		Confidence: 0.97,
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid remittance, got error: %v", err)
	}

	if got := r.InvoiceTotal(); !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("InvoiceTotal = %s, want 1500", got)
	}

	if got := r.CreditMemoTotal(); !got.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("CreditMemoTotal = %s, want -200", got)
	}

	if !r.HasCreditMemos() {
		t.Error("expected HasCreditMemos to be true")
	}

	if !r.IsUsable() {
		t.Error("linked remittance should be usable")
	}

	r.LinkStatus = RemittanceMultiMatch
	if r.IsUsable() {
		t.Error("multi-match remittance should not be usable")
	}
}

func TestSettlementEventAgeHours(t *testing.T) {
	firstSeen := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	event := NewSettlementEvent("PAY-1", "BREF-1", decimal.NewFromInt(100), firstSeen)

	now := firstSeen.Add(47 * time.Hour)
	if got := event.AgeHours(now); got != 47 {
		t.Errorf("AgeHours = %f, want 47", got)
	}

	// Closed events stop aging at LastCheckedAt.
	event.Status = SettlementFinal
	event.LastCheckedAt = firstSeen.Add(10 * time.Hour)
	if got := event.AgeHours(now); got != 10 {
		t.Errorf("closed AgeHours = %f, want 10", got)
	}
}

func TestSyncRunValidate(t *testing.T) {
	run := &SyncRun{
		ID:          "SYNC-1",
		Entity:      EntityInvoices,
		Status:      SyncSuccess,
		CompletedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := run.Validate(); err != nil {
		t.Errorf("expected valid sync run, got error: %v", err)
	}

	run.Status = "BOGUS"
	if err := run.Validate(); err == nil {
		t.Error("expected invalid sync status to fail validation")
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"42.50", "42.5", false},
		{"$1,250.00", "1250", false},
		{" 100 ", "100", false},
		{"-250.75", "-250.75", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseMoney(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseMoney(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAmountsWithinTolerance(t *testing.T) {
	tol := decimal.NewFromFloat(0.50)

	if !AmountsWithinTolerance(decimal.NewFromFloat(100.00), decimal.NewFromFloat(100.50), tol) {
		t.Error("difference of exactly 0.50 should be within tolerance")
	}

	if AmountsWithinTolerance(decimal.NewFromFloat(100.00), decimal.NewFromFloat(101.00), tol) {
		t.Error("difference of 1.00 should exceed tolerance")
	}
}
