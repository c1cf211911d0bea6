package reconciler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/store"
	"ar-reconciliation-service/pkg/errors"
)

func testNow() time.Time {
	return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
}

// seedStore builds a store with a small receivable catalog and healthy
// sync runs for every entity.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.NewMemoryStore()

	items := []*models.ReceivableItem{
		models.NewReceivableItem("INV-51201", models.ReceivableInvoice, decimal.NewFromFloat(125.50), "CUST-1"),
		models.NewReceivableItem("INV-84620", models.ReceivableInvoice, decimal.NewFromFloat(300.00), "CUST-1"),
		models.NewReceivableItem("CM-104", models.ReceivableCreditMemo, decimal.NewFromFloat(-45.00), "CUST-1"),
	}
	for _, item := range items {
		if err := st.Receivables.Upsert(item); err != nil {
			t.Fatalf("seeding receivable: %v", err)
		}
	}

	for i, entity := range models.AllEntityTypes() {
		run := &models.SyncRun{
			ID:            "RUN-" + string(entity),
			Entity:        entity,
			Status:        models.SyncSuccess,
			RecordsSynced: 10 + i,
			CompletedAt:   testNow().Add(-5 * time.Minute),
		}
		if err := st.SyncRuns.Record(run); err != nil {
			t.Fatalf("seeding sync run: %v", err)
		}
	}

	return st
}

func seedPayment(t *testing.T, st *store.Store, amount float64, memo string) *models.Payment {
	t.Helper()
	p := models.NewPayment(decimal.NewFromFloat(amount), "USD", testNow(), "Acme Industrial Supply", memo)
	p.CustomerID = "CUST-1"
	if err := st.Payments.Save(p); err != nil {
		t.Fatalf("seeding payment: %v", err)
	}
	return p
}

func newTestService(t *testing.T, st *store.Store) *Service {
	t.Helper()
	s, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s
}

func TestServiceEvaluate(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 125.50, "INV-51201")

	decision, err := s.Evaluate(payment.ID, testNow())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if decision.Status != models.PaymentStatusPendingToPost {
		t.Errorf("expected PendingToPost, got %s", decision.Status)
	}

	// The decision is persisted on the payment
	stored, ok := st.Payments.Get(payment.ID)
	if !ok {
		t.Fatal("payment missing after evaluation")
	}
	if stored.Status != models.PaymentStatusPendingToPost {
		t.Errorf("expected persisted status PendingToPost, got %s", stored.Status)
	}
	if stored.Explanation == nil {
		t.Error("expected persisted explanation")
	}
}

func TestServiceEvaluateUnknownPayment(t *testing.T) {
	s := newTestService(t, seedStore(t))
	if _, err := s.Evaluate("PAY-404", testNow()); err == nil {
		t.Error("expected error for unknown payment")
	}
}

func TestServiceEvaluatePicksUpRemittance(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 380.50, "see attached remittance")

	remittance := &models.Remittance{
		ID:        "REM-1",
		PaymentID: payment.ID,
		References: []models.RemittanceReference{
			{Identifier: "INV-51201", Amount: decimal.NewFromFloat(125.50)},
			{Identifier: "INV-84620", Amount: decimal.NewFromFloat(300.00)},
			{Identifier: "CM-104", Amount: decimal.NewFromFloat(-45.00), CreditMemo: true},
		},
		LinkStatus: models.RemittanceLinked,
		Confidence: 0.97,
	}
	if err := st.Remittances.Save(remittance); err != nil {
		t.Fatalf("saving remittance: %v", err)
	}

	decision, err := s.Evaluate(payment.ID, testNow())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if decision.Status != models.PaymentStatusPendingToPost {
		t.Errorf("expected PendingToPost, got %s (exception %s)", decision.Status, decision.ExceptionType)
	}
	if len(decision.PostingLines) != 3 {
		t.Errorf("expected 3 posting lines from remittance, got %d", len(decision.PostingLines))
	}
}

func TestServiceResolveExceptionTaxonomy(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 200.00, "no reference here")

	if _, err := s.Evaluate(payment.ID, testNow()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	classification, err := s.ResolveExceptionTaxonomy(payment.ID)
	if err != nil {
		t.Fatalf("ResolveExceptionTaxonomy failed: %v", err)
	}

	if classification.CoreType != models.CoreMatching {
		t.Errorf("expected MATCHING core type, got %s", classification.CoreType)
	}
	if classification.ReasonCode != models.ReasonNoReferenceMatch {
		t.Errorf("expected NO_REFERENCE_MATCH, got %s", classification.ReasonCode)
	}

	// Idempotent: a second resolve returns the same triple
	again, err := s.ResolveExceptionTaxonomy(payment.ID)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if again != classification {
		t.Errorf("expected identical classification, got %v vs %v", again, classification)
	}
}

func TestServiceSettlementLifecycle(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 125.50, "ACH batch")

	prelim := &models.BankTransaction{
		BankReference: "BATCH-22",
		PaymentID:     payment.ID,
		Amount:        decimal.NewFromFloat(125.50),
		Direction:     models.BankDirectionCredit,
		Method:        "ACH",
		ObservedAt:    testNow(),
		Stage:         models.BankStagePreliminary,
	}

	event, err := s.RecordSettlementObservation(prelim, testNow())
	if err != nil {
		t.Fatalf("RecordSettlementObservation failed: %v", err)
	}
	if event.Status != models.SettlementPending {
		t.Errorf("expected pending event, got %s", event.Status)
	}

	stored, _ := st.Payments.Get(payment.ID)
	if stored.Status != models.PaymentStatusSettlementPending {
		t.Errorf("expected payment in SettlementPending, got %s", stored.Status)
	}
	if stored.Settlement.Status != models.SettlementPending {
		t.Errorf("expected settlement fields pending, got %s", stored.Settlement.Status)
	}

	final := &models.BankTransaction{
		BankReference: "BATCH-22",
		PaymentID:     payment.ID,
		Amount:        decimal.NewFromFloat(125.50),
		Direction:     models.BankDirectionCredit,
		Method:        "ACH",
		ObservedAt:    testNow().Add(2 * time.Hour),
		Stage:         models.BankStageFinal,
	}

	closed, err := s.FinalizeSettlement(final, testNow().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("FinalizeSettlement failed: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed event, got %d", len(closed))
	}

	stored, _ = st.Payments.Get(payment.ID)
	if stored.Settlement.Status != models.SettlementFinal {
		t.Errorf("expected settlement final on payment, got %s", stored.Settlement.Status)
	}
}

func TestServiceGhostPayment(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 125.50, "wire pending")

	prelim := &models.BankTransaction{
		BankReference: "WIRE-9",
		PaymentID:     payment.ID,
		Amount:        decimal.NewFromFloat(125.50),
		Direction:     models.BankDirectionCredit,
		Method:        "WIRE",
		ObservedAt:    testNow(),
		Stage:         models.BankStagePreliminary,
	}
	if _, err := s.RecordSettlementObservation(prelim, testNow()); err != nil {
		t.Fatalf("observe failed: %v", err)
	}

	// 49 hours later the event crosses the 48h ghost threshold
	later := testNow().Add(49 * time.Hour)
	failed, err := s.ReevaluateSettlements(later)
	if err != nil {
		t.Fatalf("ReevaluateSettlements failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed event, got %d", len(failed))
	}

	stored, _ := st.Payments.Get(payment.ID)
	if stored.Status != models.PaymentStatusException {
		t.Errorf("expected payment in Exception, got %s", stored.Status)
	}
	if stored.Classification.ReasonCode != models.ReasonGhostPayment {
		t.Errorf("expected GHOST_PAYMENT classification, got %s", stored.Classification.ReasonCode)
	}
	if stored.Settlement.Status != models.SettlementFailed {
		t.Errorf("expected settlement failed, got %s", stored.Settlement.Status)
	}
}

func TestServiceGhostPaymentFromBackdatedObservation(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 125.50, "wire pending")

	// The bank feed reports the observation 72 hours after the fact;
	// the event must age from the bank's clock, not the run's.
	prelim := &models.BankTransaction{
		BankReference: "WIRE-12",
		PaymentID:     payment.ID,
		Amount:        decimal.NewFromFloat(125.50),
		Direction:     models.BankDirectionCredit,
		Method:        "WIRE",
		ObservedAt:    testNow().Add(-72 * time.Hour),
		Stage:         models.BankStagePreliminary,
	}
	if _, err := s.RecordSettlementObservation(prelim, testNow()); err != nil {
		t.Fatalf("observe failed: %v", err)
	}

	failed, err := s.ReevaluateSettlements(testNow())
	if err != nil {
		t.Fatalf("ReevaluateSettlements failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected the 72h-old observation to fail as a ghost, got %d failed events", len(failed))
	}

	stored, _ := st.Payments.Get(payment.ID)
	if stored.Status != models.PaymentStatusException {
		t.Errorf("expected payment in Exception, got %s", stored.Status)
	}
	if stored.Classification.ReasonCode != models.ReasonGhostPayment {
		t.Errorf("expected GHOST_PAYMENT classification, got %s", stored.Classification.ReasonCode)
	}
}

func TestServiceCanPostToERP(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)

	allowed, reason := s.CanPostToERP(testNow())
	if !allowed {
		t.Errorf("expected posting allowed with healthy syncs, got blocked: %s", reason)
	}

	// A partial invoice sync blocks posting repo-wide
	bad := &models.SyncRun{
		ID:            "RUN-BAD",
		Entity:        models.EntityInvoices,
		Status:        models.SyncPartial,
		RecordsSynced: 50,
		RecordsFailed: 7,
		CompletedAt:   testNow(),
	}
	if err := st.SyncRuns.Record(bad); err != nil {
		t.Fatalf("recording sync run: %v", err)
	}

	allowed, reason = s.CanPostToERP(testNow())
	if allowed {
		t.Error("expected posting blocked after partial sync")
	}
	if reason == "" {
		t.Error("expected a blocking reason naming the entity")
	}
}

func TestServiceEnsurePostable(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)

	if err := s.EnsurePostable(testNow()); err != nil {
		t.Errorf("expected postable with healthy syncs, got %v", err)
	}

	bad := &models.SyncRun{
		ID:            "RUN-BAD",
		Entity:        models.EntityPayments,
		Status:        models.SyncFailed,
		RecordsFailed: 12,
		CompletedAt:   testNow(),
	}
	if err := st.SyncRuns.Record(bad); err != nil {
		t.Fatalf("recording sync run: %v", err)
	}

	err := s.EnsurePostable(testNow())
	if err == nil {
		t.Fatal("expected error with a failed sync run")
	}
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodePostingBlocked {
		t.Errorf("expected posting_blocked error, got %v", err)
	}
	if re.Context["reason"] == "" {
		t.Error("expected the blocking reason in the error context")
	}
}

func TestResolveExceptionTaxonomyClosedInvoice(t *testing.T) {
	st := seedStore(t)
	closed := models.NewReceivableItem("INV-30990", models.ReceivableInvoice, decimal.NewFromFloat(210.00), "CUST-1")
	closed.Close()
	if err := st.Receivables.Upsert(closed); err != nil {
		t.Fatalf("seeding closed receivable: %v", err)
	}

	s := newTestService(t, st)
	payment := seedPayment(t, st, 210.00, "Payment for INV-30990")

	decision, err := s.Evaluate(payment.ID, testNow())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.ExceptionType != models.ExceptionInvalidRef {
		t.Fatalf("expected INVALID_REF, got %s", decision.ExceptionType)
	}

	classification, err := s.ResolveExceptionTaxonomy(payment.ID)
	if err != nil {
		t.Fatalf("ResolveExceptionTaxonomy failed: %v", err)
	}
	if classification.ReasonCode != models.ReasonInvoiceClosed {
		t.Errorf("expected INVOICE_CLOSED, got %s", classification.ReasonCode)
	}
	if classification.CoreType != models.CoreReceivableState {
		t.Errorf("expected receivable-state core type, got %s", classification.CoreType)
	}
}

func TestResolveExceptionTaxonomyFrozenPayment(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)
	payment := seedPayment(t, st, 125.50, "INV-51201")
	payment.Status = models.PaymentStatusPosted
	if err := st.Payments.Save(payment); err != nil {
		t.Fatalf("saving payment: %v", err)
	}

	_, err := s.ResolveExceptionTaxonomy(payment.ID)
	if err == nil {
		t.Fatal("expected error resolving taxonomy on a posted payment")
	}
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeFrozenPayment {
		t.Errorf("expected frozen_payment error, got %v", err)
	}
}

func TestServiceEvaluateBatch(t *testing.T) {
	st := seedStore(t)
	s := newTestService(t, st)

	matched := seedPayment(t, st, 125.50, "INV-51201")
	excepted := seedPayment(t, st, 200.00, "no reference")

	var callbackCount int
	s.AddProgressCallback(func(p *BatchProgress) {
		callbackCount++
		if p.TotalPayments != 2 {
			t.Errorf("expected 2 total payments in progress, got %d", p.TotalPayments)
		}
	})

	result, err := s.EvaluateBatch(testNow())
	if err != nil {
		t.Fatalf("EvaluateBatch failed: %v", err)
	}

	if result.Evaluated != 2 {
		t.Errorf("expected 2 evaluated, got %d", result.Evaluated)
	}
	if result.AutoMatched != 1 || result.Exceptions != 1 {
		t.Errorf("expected 1 matched / 1 exception, got %d / %d", result.AutoMatched, result.Exceptions)
	}
	if result.ByException[models.ExceptionInvalidRef] != 1 {
		t.Errorf("expected 1 INVALID_REF, got %d", result.ByException[models.ExceptionInvalidRef])
	}
	if !result.AmountMatched.Equal(decimal.NewFromFloat(125.50)) {
		t.Errorf("expected matched amount 125.50, got %s", result.AmountMatched)
	}
	if !result.AmountUnmatched.Equal(decimal.NewFromFloat(200.00)) {
		t.Errorf("expected unmatched amount 200.00, got %s", result.AmountUnmatched)
	}
	if callbackCount != 2 {
		t.Errorf("expected 2 progress callbacks, got %d", callbackCount)
	}
	if result.MatchRate() != 0.5 {
		t.Errorf("expected match rate 0.5, got %f", result.MatchRate())
	}

	// Exception payments picked up a classification during the batch
	stored, _ := st.Payments.Get(excepted.ID)
	if !stored.Classification.IsValid() {
		t.Error("expected exception payment classified during batch run")
	}

	// Matched payment ended in PendingToPost
	stored, _ = st.Payments.Get(matched.ID)
	if stored.Status != models.PaymentStatusPendingToPost {
		t.Errorf("expected PendingToPost, got %s", stored.Status)
	}

	// A second batch run finds nothing eligible
	again, err := s.EvaluateBatch(testNow())
	if err != nil {
		t.Fatalf("second batch failed: %v", err)
	}
	if again.Evaluated != 0 {
		t.Errorf("expected nothing eligible on second run, got %d", again.Evaluated)
	}
}
