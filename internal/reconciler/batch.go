package reconciler

import (
	"time"

	"github.com/shopspring/decimal"

	"ar-reconciliation-service/internal/engine"
	"ar-reconciliation-service/internal/matcher"
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/taxonomy"
	"ar-reconciliation-service/pkg/logger"
)

// BatchProgress tracks the progress of a batch evaluation run
type BatchProgress struct {
	TotalPayments   int           `json:"total_payments"`
	Completed       int           `json:"completed"`
	PercentComplete float64       `json:"percent_complete"`
	CurrentStep     string        `json:"current_step"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`

	AutoMatched int `json:"auto_matched"`
	Exceptions  int `json:"exceptions"`
}

// ProgressCallback is called after each payment in a batch run
type ProgressCallback func(*BatchProgress)

// BatchResult summarizes one batch evaluation run
type BatchResult struct {
	Evaluated   int                          `json:"evaluated"`
	AutoMatched int                          `json:"auto_matched"`
	Exceptions  int                          `json:"exceptions"`
	ByException map[models.ExceptionType]int `json:"by_exception,omitempty"`

	AmountMatched   decimal.Decimal `json:"amount_matched"`
	AmountUnmatched decimal.Decimal `json:"amount_unmatched"`

	Decisions []*engine.Decision `json:"decisions"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// MatchRate returns the share of evaluated payments that auto-matched
func (br *BatchResult) MatchRate() float64 {
	if br.Evaluated == 0 {
		return 0
	}
	return float64(br.AutoMatched) / float64(br.Evaluated)
}

// AddProgressCallback registers a callback invoked as the batch advances
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.progressCallbacks = append(s.progressCallbacks, callback)
}

func (s *Service) reportProgress(progress *BatchProgress) {
	s.progressMutex.RLock()
	callbacks := s.progressCallbacks
	s.progressMutex.RUnlock()

	for _, callback := range callbacks {
		callback(progress)
	}
}

// EvaluateBatch walks every payment still in the New state, evaluates
// each against the current catalog, and resolves the exception taxonomy
// on every parked payment. The receivable index is built once per run.
func (s *Service) EvaluateBatch(now time.Time) (*BatchResult, error) {
	start := time.Now()
	eligible := s.store.Payments.ListByStatus(models.PaymentStatusNew)

	opLog := logger.NewOperationLogger("batch evaluation", s.logger).
		WithField("payments", len(eligible))

	opLog.Step("indexing receivables")
	index := matcher.NewReceivableIndex(s.store.Receivables.List())
	opLog.WithField("receivables", index.GetIndexStats().TotalItems)

	opLog.Step("evaluating payments")

	result := &BatchResult{
		ByException:     make(map[models.ExceptionType]int),
		AmountMatched:   decimal.Zero,
		AmountUnmatched: decimal.Zero,
	}
	progress := &BatchProgress{
		TotalPayments: len(eligible),
		CurrentStep:   "evaluating payments",
		StartTime:     start,
	}

	for _, payment := range eligible {
		var remittance *models.Remittance
		remittance, _ = s.store.Remittances.ForPayment(payment.ID)

		decision, err := s.engine.Evaluate(payment, remittance, index, now)
		if err != nil {
			opLog.Error(err, "Batch evaluation failed")
			return nil, err
		}

		if decision.Status == models.PaymentStatusException {
			classification := taxonomy.Apply(payment, taxonomy.SignalsFromPayment(payment))
			s.logger.WithFields(logger.Fields{
				"payment_id":     payment.ID,
				"exception":      decision.ExceptionType,
				"classification": classification.String(),
			}).Debug("Payment parked during batch run")

			result.Exceptions++
			result.ByException[decision.ExceptionType]++
			result.AmountUnmatched = result.AmountUnmatched.Add(payment.Amount)
		} else {
			result.AutoMatched++
			result.AmountMatched = result.AmountMatched.Add(payment.Amount)
		}

		if err := s.store.Payments.Save(payment); err != nil {
			return nil, err
		}

		result.Evaluated++
		result.Decisions = append(result.Decisions, decision)

		progress.Completed++
		progress.AutoMatched = result.AutoMatched
		progress.Exceptions = result.Exceptions
		progress.ElapsedTime = time.Since(start)
		if progress.TotalPayments > 0 {
			progress.PercentComplete = float64(progress.Completed) / float64(progress.TotalPayments) * 100
		}
		s.reportProgress(progress)
	}

	result.Elapsed = time.Since(start)

	opLog.WithField("evaluated", result.Evaluated).
		WithField("auto_matched", result.AutoMatched).
		WithField("exceptions", result.Exceptions).
		Success("Batch evaluation complete")

	return result, nil
}
