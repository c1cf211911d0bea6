// Package settlement tracks bank-reported transactions from preliminary
// observation through final settlement, and flags ghost payments that
// never finalize.
//
// Lifecycle: a preliminary bank transaction opens a Pending
// SettlementEvent; the matching final transaction (correlated by bank
// reference) closes it Final; an event older than the ghost threshold
// with no final match fails. Several preliminary transactions may share
// one bank reference (lockbox batches) — each gets its own event, and
// one final transaction reconciles them all.
//
// Time is always an explicit parameter. The threshold check runs on
// every re-evaluation, never only once.
package settlement

import (
	"fmt"
	"time"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/pkg/errors"
	"ar-reconciliation-service/pkg/logger"
)

// Config holds settlement tracking parameters
type Config struct {
	// GhostThresholdHours is the age beyond which a pending event with
	// no final transaction is declared failed
	GhostThresholdHours float64 `json:"ghost_threshold_hours"`
}

// DefaultConfig returns the production settlement configuration
func DefaultConfig() *Config {
	return &Config{
		GhostThresholdHours: 48,
	}
}

// Validate checks if the settlement configuration is valid
func (c *Config) Validate() error {
	if c.GhostThresholdHours <= 0 {
		return fmt.Errorf("ghost threshold hours must be positive: %f", c.GhostThresholdHours)
	}
	return nil
}

// EventRepository is the storage contract the tracker needs. Writes must
// be serialized by the implementation; the tracker assumes single-writer
// discipline per reconciliation tick.
type EventRepository interface {
	ByBankReference(bankReference string) []*models.SettlementEvent
	Open() []*models.SettlementEvent
	Save(event *models.SettlementEvent) error
}

// Tracker reconciles preliminary and final bank feed events
type Tracker struct {
	config *Config
	events EventRepository
	logger logger.Logger
}

// NewTracker creates a settlement tracker
func NewTracker(config *Config, events EventRepository) (*Tracker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settlement config: %w", err)
	}

	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}

	return &Tracker{
		config: config,
		events: events,
		logger: logger.GetGlobalLogger().WithComponent("settlement_tracker"),
	}, nil
}

// Config returns the tracker configuration
func (t *Tracker) Config() *Config {
	return t.config
}

// Observe records a preliminary bank transaction, creating a pending
// settlement event. Observing the same transaction again for the same
// payment is idempotent: the existing event is touched, not duplicated.
func (t *Tracker) Observe(txn *models.BankTransaction, now time.Time) (*models.SettlementEvent, error) {
	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank transaction: %w", err)
	}

	if txn.Stage != models.BankStagePreliminary {
		return nil, errors.SettlementError(errors.CodeInvalidStage, txn.BankReference, nil).
			WithContext("stage", string(txn.Stage))
	}

	for _, event := range t.events.ByBankReference(txn.BankReference) {
		if event.PaymentID == txn.PaymentID && event.Status == models.SettlementPending {
			event.LastCheckedAt = now
			if err := t.events.Save(event); err != nil {
				return nil, err
			}
			return event, nil
		}
	}

	// The event ages from the bank's observation time, not the run
	// clock: a back-dated feed entry must still trip the ghost
	// threshold on the next re-evaluation.
	event := models.NewSettlementEvent(txn.PaymentID, txn.BankReference, txn.Amount, txn.ObservedAt)
	event.LastCheckedAt = now
	if err := t.events.Save(event); err != nil {
		return nil, err
	}

	t.logger.WithFields(logger.Fields{
		"payment_id":     txn.PaymentID,
		"bank_reference": txn.BankReference,
	}).Debug("Settlement observation recorded")

	return event, nil
}

// Finalize correlates a final bank transaction against pending events
// sharing its bank reference and closes each as Final. Returns the
// events it closed; an empty result means nothing was pending under that
// reference.
func (t *Tracker) Finalize(txn *models.BankTransaction, now time.Time) ([]*models.SettlementEvent, error) {
	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank transaction: %w", err)
	}

	if txn.Stage != models.BankStageFinal {
		return nil, errors.SettlementError(errors.CodeInvalidStage, txn.BankReference, nil).
			WithContext("stage", string(txn.Stage))
	}

	var closed []*models.SettlementEvent
	for _, event := range t.events.ByBankReference(txn.BankReference) {
		if event.Status != models.SettlementPending {
			continue
		}

		event.Status = models.SettlementFinal
		event.LastCheckedAt = now
		event.Reason = ""
		if err := t.events.Save(event); err != nil {
			return nil, err
		}
		closed = append(closed, event)
	}

	if len(closed) > 0 {
		t.logger.WithFields(logger.Fields{
			"bank_reference": txn.BankReference,
			"events_closed":  len(closed),
		}).Info("Settlement finalized")
	}

	return closed, nil
}

// Reevaluate applies the ghost threshold to every open event and returns
// the events that failed on this pass. Safe to call repeatedly; an
// already-failed event is not failed twice.
func (t *Tracker) Reevaluate(now time.Time) ([]*models.SettlementEvent, error) {
	var failed []*models.SettlementEvent

	for _, event := range t.events.Open() {
		event.LastCheckedAt = now
		if event.AgeHours(now) <= t.config.GhostThresholdHours {
			if err := t.events.Save(event); err != nil {
				return nil, err
			}
			continue
		}

		event.Status = models.SettlementFailed
		event.Reason = fmt.Sprintf("no final transaction within %.0fh", t.config.GhostThresholdHours)
		if err := t.events.Save(event); err != nil {
			return nil, err
		}
		failed = append(failed, event)

		t.logger.WithFields(logger.Fields{
			"payment_id":     event.PaymentID,
			"bank_reference": event.BankReference,
			"age_hours":      event.AgeHours(now),
		}).Warn("Ghost payment detected")
	}

	return failed, nil
}
