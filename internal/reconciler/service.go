// Package reconciler provides the high-level service facade over the
// reconciliation engines: payment evaluation, exception taxonomy
// resolution, settlement lifecycle tracking, and the ERP posting gate.
//
// The facade owns wiring: it builds the decision engine, settlement
// tracker, and integrity guard over one shared store, and exposes the
// operations callers use:
//
//	service, _ := reconciler.NewService(store, nil)
//	decision, _ := service.Evaluate(paymentID, time.Now())
//	allowed, reason, _ := service.CanPostToERP(time.Now())
package reconciler

import (
	"fmt"
	"sync"
	"time"

	"ar-reconciliation-service/internal/engine"
	"ar-reconciliation-service/internal/integrity"
	"ar-reconciliation-service/internal/matcher"
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/settlement"
	"ar-reconciliation-service/internal/store"
	"ar-reconciliation-service/internal/taxonomy"
	"ar-reconciliation-service/pkg/errors"
	"ar-reconciliation-service/pkg/logger"
)

// Config bundles the component configurations behind one handle
type Config struct {
	Scoring    *matcher.ScoringConfig
	Settlement *settlement.Config
	Integrity  *integrity.Config
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		Scoring:    matcher.DefaultScoringConfig(),
		Settlement: settlement.DefaultConfig(),
		Integrity:  integrity.DefaultConfig(),
	}
}

// Validate validates every component configuration
func (c *Config) Validate() error {
	if c.Scoring != nil {
		if err := c.Scoring.Validate(); err != nil {
			return fmt.Errorf("scoring config: %w", err)
		}
	}
	if c.Settlement != nil {
		if err := c.Settlement.Validate(); err != nil {
			return fmt.Errorf("settlement config: %w", err)
		}
	}
	if c.Integrity != nil {
		if err := c.Integrity.Validate(); err != nil {
			return fmt.Errorf("integrity config: %w", err)
		}
	}
	return nil
}

// Service is the reconciliation facade. Safe for concurrent callers:
// the store serializes writes and the engines are stateless.
type Service struct {
	store   *store.Store
	engine  *engine.Engine
	tracker *settlement.Tracker
	guard   *integrity.Guard
	config  *Config
	logger  logger.Logger

	progressCallbacks []ProgressCallback
	progressMutex     sync.RWMutex
}

// NewService wires the engines over the given store
func NewService(st *store.Store, config *Config) (*Service, error) {
	if st == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "store", nil, nil).
			WithSuggestion("Provide a store, e.g. store.NewMemoryStore()")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "service", nil, err)
	}

	eng, err := engine.NewEngine(config.Scoring)
	if err != nil {
		return nil, err
	}

	tracker, err := settlement.NewTracker(config.Settlement, st.SettlementEvents)
	if err != nil {
		return nil, err
	}

	guard, err := integrity.NewGuard(config.Integrity, st.SyncRuns)
	if err != nil {
		return nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("reconciler_service")
	log.Debug("Reconciliation service created")

	return &Service{
		store:   st,
		engine:  eng,
		tracker: tracker,
		guard:   guard,
		config:  config,
		logger:  log,
	}, nil
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Evaluate runs the decision engine on one payment and persists the
// outcome. Evaluating an already-decided payment returns the existing
// decision without side effects.
func (s *Service) Evaluate(paymentID string, now time.Time) (*engine.Decision, error) {
	payment, ok := s.store.Payments.Get(paymentID)
	if !ok {
		return nil, errors.ValidationError(errors.CodeMissingField, "payment_id", paymentID, nil).
			WithSuggestion("Check the payment was ingested before evaluation")
	}

	index := matcher.NewReceivableIndex(s.store.Receivables.List())

	var remittance *models.Remittance
	if payment.RemittanceID != "" {
		remittance, _ = s.store.Remittances.Get(payment.RemittanceID)
	}
	if remittance == nil {
		remittance, _ = s.store.Remittances.ForPayment(paymentID)
	}

	wasEligible := payment.IsEligibleForEvaluation()

	decision, err := s.engine.Evaluate(payment, remittance, index, now)
	if err != nil {
		return nil, err
	}

	if wasEligible {
		if err := s.store.Payments.Save(payment); err != nil {
			return nil, err
		}
	}

	return decision, nil
}

// ResolveExceptionTaxonomy derives the two-level classification for one
// payment from its current signals and persists it. Resolving twice on
// unchanged input is a no-op returning the same triple.
func (s *Service) ResolveExceptionTaxonomy(paymentID string) (models.Classification, error) {
	payment, ok := s.store.Payments.Get(paymentID)
	if !ok {
		return models.Classification{}, errors.ValidationError(errors.CodeMissingField, "payment_id", paymentID, nil)
	}

	// Posted payments are frozen: classification and match fields may
	// not change, only the activity log grows.
	if !payment.IsMutable() {
		return models.Classification{}, errors.MatchingError(errors.CodeFrozenPayment, payment.ID, nil)
	}

	classification := taxonomy.Apply(payment, taxonomy.SignalsFromPayment(payment))

	if err := s.store.Payments.Save(payment); err != nil {
		return models.Classification{}, err
	}

	return classification, nil
}

// RecordSettlementObservation records a preliminary bank transaction:
// a pending settlement event opens (idempotently) and the referenced
// payment, if still New, moves to SettlementPending.
func (s *Service) RecordSettlementObservation(txn *models.BankTransaction, now time.Time) (*models.SettlementEvent, error) {
	event, err := s.tracker.Observe(txn, now)
	if err != nil {
		return nil, err
	}

	payment, ok := s.store.Payments.Get(txn.PaymentID)
	if !ok {
		return event, nil
	}

	if payment.IsMutable() {
		payment.Settlement.Status = models.SettlementPending
		payment.Settlement.FirstSeenAt = &event.FirstSeenAt
		payment.Settlement.LastCheckedAt = &event.LastCheckedAt

		if payment.Status == models.PaymentStatusNew {
			if err := payment.TransitionTo(models.PaymentStatusSettlementPending); err != nil {
				return nil, errors.SettlementError(errors.CodeEventConflict, txn.BankReference, err)
			}
			payment.LogActivity(now, fmt.Sprintf("settlement pending on bank reference %s", txn.BankReference))
		}

		if err := s.store.Payments.Save(payment); err != nil {
			return nil, err
		}
	}

	return event, nil
}

// FinalizeSettlement records a final bank transaction: every pending
// event under the bank reference closes as Final and the affected
// payments' settlement fields are updated.
func (s *Service) FinalizeSettlement(txn *models.BankTransaction, now time.Time) ([]*models.SettlementEvent, error) {
	closed, err := s.tracker.Finalize(txn, now)
	if err != nil {
		return nil, err
	}

	for _, event := range closed {
		payment, ok := s.store.Payments.Get(event.PaymentID)
		if !ok || !payment.IsMutable() {
			continue
		}

		payment.Settlement.Status = models.SettlementFinal
		payment.Settlement.LastCheckedAt = &event.LastCheckedAt
		payment.LogActivity(now, fmt.Sprintf("settlement finalized on bank reference %s", event.BankReference))

		if err := s.store.Payments.Save(payment); err != nil {
			return nil, err
		}
	}

	return closed, nil
}

// ReevaluateSettlements applies the ghost threshold to every open
// settlement event. Payments behind newly failed events move to
// Exception and classify as ghost payments.
func (s *Service) ReevaluateSettlements(now time.Time) ([]*models.SettlementEvent, error) {
	failed, err := s.tracker.Reevaluate(now)
	if err != nil {
		return nil, err
	}

	for _, event := range failed {
		payment, ok := s.store.Payments.Get(event.PaymentID)
		if !ok || !payment.IsMutable() {
			continue
		}

		payment.Settlement.Status = models.SettlementFailed
		payment.Settlement.Reason = event.Reason
		payment.Settlement.LastCheckedAt = &event.LastCheckedAt

		if payment.Status == models.PaymentStatusSettlementPending {
			if err := payment.TransitionTo(models.PaymentStatusException); err != nil {
				return nil, errors.SettlementError(errors.CodeEventConflict, event.BankReference, err)
			}
		}

		taxonomy.Apply(payment, taxonomy.SignalsFromPayment(payment))
		payment.LogActivity(now, fmt.Sprintf("settlement failed: %s", event.Reason))

		if err := s.store.Payments.Save(payment); err != nil {
			return nil, err
		}

		s.logger.WithFields(logger.Fields{
			"payment_id":     payment.ID,
			"bank_reference": event.BankReference,
		}).Warn("Ghost payment detected")
	}

	return failed, nil
}

// CanPostToERP reports whether ERP posting is allowed, with the
// blocking reason when it is not. The answer depends only on sync
// health, never on any single payment.
func (s *Service) CanPostToERP(now time.Time) (bool, string) {
	return s.guard.CanPostToERP(now)
}

// EnsurePostable returns a typed sync error when the integrity gate
// blocks ERP posting, naming the first offending entity and carrying
// the full blocking reason as context.
func (s *Service) EnsurePostable(now time.Time) error {
	ok, reason := s.guard.CanPostToERP(now)
	if ok {
		return nil
	}

	entity := "working set"
	if report := s.guard.Evaluate(now); len(report.Findings) > 0 {
		entity = string(report.Findings[0].Entity)
	}

	return errors.SyncError(errors.CodePostingBlocked, entity, nil).
		WithContext("reason", reason)
}

// IntegrityReport returns the full sync-health report
func (s *Service) IntegrityReport(now time.Time) *integrity.Report {
	return s.guard.Evaluate(now)
}
