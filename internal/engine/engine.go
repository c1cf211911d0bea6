// Package engine implements the match decision engine: the single place
// where an incoming payment is either auto-matched against open
// receivables or parked as an exception.
//
// Evaluation is deterministic and explainable: the engine prefers
// structured remittance advice when a linked remittance exists, falls
// back to reference tokens extracted from free text, and records a
// reproducible explanation with weighted signals on every branch.
package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ar-reconciliation-service/internal/matcher"
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/tokenizer"
	"ar-reconciliation-service/pkg/errors"
	"ar-reconciliation-service/pkg/logger"
)

// Decision is the outcome of evaluating one payment
type Decision struct {
	PaymentID     string                   `json:"payment_id"`
	Status        models.PaymentStatus     `json:"status"`
	ExceptionType models.ExceptionType     `json:"exception_type,omitempty"`
	Confidence    int                      `json:"confidence"`
	Explanation   *models.MatchExplanation `json:"explanation,omitempty"`
	PostingLines  []models.PostingLine     `json:"posting_lines,omitempty"`
}

// Engine evaluates payments against the receivable catalog. Stateless
// apart from configuration; safe for concurrent use across payments as
// long as each payment is evaluated by one goroutine at a time.
type Engine struct {
	config *matcher.ScoringConfig
	scorer *matcher.Scorer
	logger logger.Logger
}

// NewEngine creates a decision engine with the given scoring configuration
func NewEngine(config *matcher.ScoringConfig) (*Engine, error) {
	if config == nil {
		config = matcher.DefaultScoringConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	return &Engine{
		config: config,
		scorer: matcher.NewScorer(config),
		logger: logger.GetGlobalLogger().WithComponent("decision_engine"),
	}, nil
}

// Config returns the engine's scoring configuration
func (e *Engine) Config() *matcher.ScoringConfig {
	return e.config
}

// Evaluate decides the fate of one payment: auto-match into
// PendingToPost or park as an Exception. The remittance may be nil; the
// index must cover the current open receivable catalog.
//
// Re-evaluating a payment that already left the New state is a no-op
// returning the existing decision.
func (e *Engine) Evaluate(payment *models.Payment, remittance *models.Remittance, index *matcher.ReceivableIndex, now time.Time) (*Decision, error) {
	if payment == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "payment", nil, nil)
	}
	if index == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "receivable_index", nil, nil)
	}
	if err := payment.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "payment", payment.ID, err)
	}

	if !payment.IsEligibleForEvaluation() {
		e.logger.WithFields(logger.Fields{
			"payment_id": payment.ID,
			"status":     payment.Status,
		}).Debug("Payment not eligible for evaluation, returning existing decision")
		return decisionFromPayment(payment), nil
	}

	if remittance != nil && remittance.IsUsable() {
		return e.evaluateRemittance(payment, remittance, now)
	}

	return e.evaluateTokens(payment, index, now)
}

// evaluateRemittance reconciles a payment against its linked remittance
// advice. The references are authoritative: the signed total must
// reconcile to the payment amount within the configured tolerance.
func (e *Engine) evaluateRemittance(payment *models.Payment, remittance *models.Remittance, now time.Time) (*Decision, error) {
	invoiceTotal := remittance.InvoiceTotal()
	creditTotal := remittance.CreditMemoTotal()
	expected := invoiceTotal.Add(creditTotal)

	payment.RemittanceID = remittance.ID

	if !models.AmountsWithinTolerance(payment.Amount, expected, e.config.AmountTolerance) {
		diff := payment.Amount.Sub(expected)
		exception := models.ExceptionOverPay
		if diff.IsNegative() {
			exception = models.ExceptionShortPay
		}

		explanation := &models.MatchExplanation{
			Summary: fmt.Sprintf("remittance %s references total %s but payment is %s (difference %s)",
				remittance.ID, expected, payment.Amount, diff),
			Confidence: 0,
		}
		return e.park(payment, exception, explanation, now)
	}

	signals := []models.MatchSignal{{
		Description: fmt.Sprintf("remittance %s references reconcile to payment amount within %s",
			remittance.ID, e.config.AmountTolerance),
		Weight: float64(e.config.RemittanceConfidence) / 100.0,
	}}
	if remittance.HasCreditMemos() {
		signals = append(signals, models.MatchSignal{
			Description: fmt.Sprintf("credit memo references net %s against invoice total %s",
				creditTotal, invoiceTotal),
			Weight: e.config.CreditMemoWeight,
		})
	}

	lines := make([]models.PostingLine, 0, len(remittance.References))
	for _, ref := range remittance.References {
		lines = append(lines, models.PostingLine{
			ReceivableIdentifier: ref.Identifier,
			Amount:               ref.Amount,
			CreditMemo:           ref.CreditMemo,
		})
	}

	explanation := &models.MatchExplanation{
		Summary: fmt.Sprintf("matched by remittance %s across %d references",
			remittance.ID, len(remittance.References)),
		Signals:    signals,
		Confidence: e.config.RemittanceConfidence,
	}

	return e.autoMatch(payment, lines, explanation, now)
}

// evaluateTokens runs the tokenizer + scorer fallback path
func (e *Engine) evaluateTokens(payment *models.Payment, index *matcher.ReceivableIndex, now time.Time) (*Decision, error) {
	tokens := tokenizer.Extract(payment.ReferenceText())
	sanitized := tokenizer.SanitizedForms(tokens)

	candidates := e.scorer.Score(tokens, payment.Amount, index.Candidates(payment.CustomerID))

	if len(candidates) == 0 {
		summary := "no receivable candidate found for extracted references"

		// A reference that resolves only to a closed receivable is a
		// status problem, not a bad reference. Flag it for the taxonomy
		// resolver before parking.
		for _, form := range sanitized {
			item, ok := index.Lookup(form)
			if !ok || item.IsOpen() {
				continue
			}
			switch item.Type {
			case models.ReceivableInvoice:
				payment.InvoiceStatusIssue = true
				summary = fmt.Sprintf("referenced invoice %s is closed", item.Identifier)
			case models.ReceivableCreditMemo:
				payment.CreditMemoStatusIssue = true
				summary = fmt.Sprintf("referenced credit memo %s is closed", item.Identifier)
			}
		}

		explanation := &models.MatchExplanation{
			Summary:    summary,
			Tokens:     sanitized,
			Confidence: 0,
		}
		return e.park(payment, models.ExceptionInvalidRef, explanation, now)
	}

	top := candidates[0]

	if len(candidates) > 1 {
		runnerUp := candidates[1]
		if top.Score-runnerUp.Score < e.config.TieBreakMargin {
			explanation := &models.MatchExplanation{
				Summary: fmt.Sprintf("candidates %s (%.2f) and %s (%.2f) score within tie margin %.2f",
					top.Item.Identifier, top.Score, runnerUp.Item.Identifier, runnerUp.Score, e.config.TieBreakMargin),
				Signals:    append(append([]models.MatchSignal{}, top.Signals...), runnerUp.Signals...),
				Tokens:     sanitized,
				Confidence: confidenceFromScore(top.Score),
			}
			return e.park(payment, models.ExceptionAmbiguousMatch, explanation, now)
		}
	}

	// A valid reference whose amount disagrees beyond tolerance is a
	// short or over payment, not a match at reduced confidence.
	if !models.AmountsWithinTolerance(payment.Amount.Abs(), top.Item.AbsoluteAmount(), e.config.AmountTolerance) {
		diff := payment.Amount.Abs().Sub(top.Item.AbsoluteAmount())
		exception := models.ExceptionOverPay
		if diff.IsNegative() {
			exception = models.ExceptionShortPay
		}

		explanation := &models.MatchExplanation{
			Summary: fmt.Sprintf("reference %s matched but payment %s differs from open amount %s by %s",
				top.Item.Identifier, payment.Amount, top.Item.Amount, diff),
			Signals:    top.Signals,
			Tokens:     sanitized,
			Confidence: confidenceFromScore(top.Score),
		}
		return e.park(payment, exception, explanation, now)
	}

	confidence := confidenceFromScore(top.Score)
	if confidence < e.config.AutoMatchConfidence {
		explanation := &models.MatchExplanation{
			Summary: fmt.Sprintf("best candidate %s at confidence %d below auto-match threshold %d",
				top.Item.Identifier, confidence, e.config.AutoMatchConfidence),
			Signals:    top.Signals,
			Tokens:     sanitized,
			Confidence: confidence,
		}
		return e.park(payment, models.ExceptionAmbiguousMatch, explanation, now)
	}

	lines := []models.PostingLine{{
		ReceivableIdentifier: top.Item.Identifier,
		Amount:               payment.Amount,
		CreditMemo:           top.Item.Type == models.ReceivableCreditMemo,
	}}

	explanation := &models.MatchExplanation{
		Summary: fmt.Sprintf("matched %s at confidence %d (%s)",
			top.Item.Identifier, confidence, describeSignals(top.Signals)),
		Signals:    top.Signals,
		Tokens:     sanitized,
		Confidence: confidence,
	}

	return e.autoMatch(payment, lines, explanation, now)
}

// autoMatch moves the payment through AutoMatched into PendingToPost
func (e *Engine) autoMatch(payment *models.Payment, lines []models.PostingLine, explanation *models.MatchExplanation, now time.Time) (*Decision, error) {
	if err := payment.TransitionTo(models.PaymentStatusAutoMatched); err != nil {
		return nil, errors.MatchingError(errors.CodeMatchingFailed, payment.ID, err)
	}
	if err := payment.TransitionTo(models.PaymentStatusPendingToPost); err != nil {
		return nil, errors.MatchingError(errors.CodeMatchingFailed, payment.ID, err)
	}

	payment.ExceptionType = models.ExceptionNone
	payment.Explanation = explanation
	payment.PostingLines = lines
	payment.LogActivity(now, fmt.Sprintf("auto-matched: %s", explanation.Summary))

	e.logger.WithFields(logger.Fields{
		"payment_id": payment.ID,
		"confidence": explanation.Confidence,
		"lines":      len(lines),
	}).Info("Payment auto-matched")

	return decisionFromPayment(payment), nil
}

// park moves the payment to Exception with the given legacy type
func (e *Engine) park(payment *models.Payment, exception models.ExceptionType, explanation *models.MatchExplanation, now time.Time) (*Decision, error) {
	if err := payment.TransitionTo(models.PaymentStatusException); err != nil {
		return nil, errors.MatchingError(errors.CodeMatchingFailed, payment.ID, err)
	}

	payment.ExceptionType = exception
	payment.Explanation = explanation
	payment.LogActivity(now, fmt.Sprintf("exception %s: %s", exception, explanation.Summary))

	e.logger.WithFields(logger.Fields{
		"payment_id": payment.ID,
		"exception":  exception,
		"confidence": explanation.Confidence,
	}).Info("Payment parked as exception")

	return decisionFromPayment(payment), nil
}

// decisionFromPayment projects the payment's current decision fields
func decisionFromPayment(payment *models.Payment) *Decision {
	d := &Decision{
		PaymentID:     payment.ID,
		Status:        payment.Status,
		ExceptionType: payment.ExceptionType,
		Explanation:   payment.Explanation,
		PostingLines:  payment.PostingLines,
	}
	if payment.Explanation != nil {
		d.Confidence = payment.Explanation.Confidence
	}
	return d
}

// confidenceFromScore converts a [0,1] score to a 0-100 confidence
func confidenceFromScore(score float64) int {
	return int(math.Round(score * 100))
}

func describeSignals(signals []models.MatchSignal) string {
	parts := make([]string, 0, len(signals))
	for _, s := range signals {
		parts = append(parts, s.Description)
	}
	return strings.Join(parts, "; ")
}
