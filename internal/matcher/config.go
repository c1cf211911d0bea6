// Package matcher scores open receivables against extracted payment
// tokens and amounts.
//
// The scorer is intentionally pure: it reads tokens, a payment amount,
// and a receivable catalog, and produces ranked candidates with weighted
// signals. It never decides — near-ties and thresholds are the decision
// engine's business. All scoring weights live in ScoringConfig so that
// tolerances are configuration, not embedded literals.
//
// Example usage:
//
//	scorer := matcher.NewScorer(matcher.DefaultScoringConfig())
//	index := matcher.NewReceivableIndex(items)
//	candidates := scorer.Score(tokens, payment.Amount, index.Candidates(payment.CustomerID))
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ScoringConfig holds every weight and threshold used by candidate
// scoring and the downstream match decision. The zero value is not
// usable; construct through one of the factory functions.
//
// Factory functions for common postures:
//   - DefaultScoringConfig(): production defaults
//   - StrictScoringConfig(): tighter auto-match bar for critical books
//   - RelaxedScoringConfig(): looser bar for exploratory runs
type ScoringConfig struct {
	// SubstringWeight is awarded when a token and a receivable
	// identifier contain each other in either direction
	SubstringWeight float64 `json:"substring_weight"`

	// NumericCoreWeight is the weaker award for a prefix-stripped
	// numeric core match
	NumericCoreWeight float64 `json:"numeric_core_weight"`

	// CreditMemoWeight is awarded for CM-prefixed tokens matching a
	// credit memo identifier
	CreditMemoWeight float64 `json:"credit_memo_weight"`

	// AmountProximityWeight is awarded when the absolute receivable
	// amount is within AmountTolerance of the absolute payment amount
	AmountProximityWeight float64 `json:"amount_proximity_weight"`

	// AmountTolerance is the absolute tolerance for amount comparisons,
	// both in scoring and in short-pay/over-pay detection
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// MinCandidateScore discards candidates scoring at or below it
	MinCandidateScore float64 `json:"min_candidate_score"`

	// TieBreakMargin is the score distance under which two top
	// candidates count as a near-tie
	TieBreakMargin float64 `json:"tie_break_margin"`

	// AutoMatchConfidence is the minimum confidence (0-100) for an
	// unattended match
	AutoMatchConfidence int `json:"auto_match_confidence"`

	// RemittanceConfidence is the confidence (0-100) assigned to
	// matches reconciled from linked remittance references
	RemittanceConfidence int `json:"remittance_confidence"`
}

// DefaultScoringConfig returns the production scoring configuration
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		SubstringWeight:       0.60,
		NumericCoreWeight:     0.50,
		CreditMemoWeight:      0.65,
		AmountProximityWeight: 0.30,
		AmountTolerance:       decimal.NewFromFloat(0.50),
		MinCandidateScore:     0.40,
		TieBreakMargin:        0.10,
		AutoMatchConfidence:   90,
		RemittanceConfidence:  94,
	}
}

// StrictScoringConfig returns a configuration that auto-matches only on
// very strong evidence
func StrictScoringConfig() *ScoringConfig {
	config := DefaultScoringConfig()
	config.AmountTolerance = decimal.NewFromFloat(0.01)
	config.MinCandidateScore = 0.60
	config.TieBreakMargin = 0.20
	config.AutoMatchConfidence = 95
	return config
}

// RelaxedScoringConfig returns a configuration suited to exploratory
// matching where manual review follows anyway
func RelaxedScoringConfig() *ScoringConfig {
	config := DefaultScoringConfig()
	config.AmountTolerance = decimal.NewFromFloat(1.00)
	config.MinCandidateScore = 0.30
	config.TieBreakMargin = 0.05
	config.AutoMatchConfidence = 80
	return config
}

// Validate checks if the scoring configuration is valid
func (sc *ScoringConfig) Validate() error {
	weights := map[string]float64{
		"substring_weight":        sc.SubstringWeight,
		"numeric_core_weight":     sc.NumericCoreWeight,
		"credit_memo_weight":      sc.CreditMemoWeight,
		"amount_proximity_weight": sc.AmountProximityWeight,
	}
	for name, w := range weights {
		if w < 0.0 || w > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0: %f", name, w)
		}
	}

	if sc.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", sc.AmountTolerance)
	}

	if sc.MinCandidateScore < 0.0 || sc.MinCandidateScore >= 1.0 {
		return fmt.Errorf("min candidate score must be in [0.0, 1.0): %f", sc.MinCandidateScore)
	}

	if sc.TieBreakMargin < 0.0 || sc.TieBreakMargin > 1.0 {
		return fmt.Errorf("tie break margin must be between 0.0 and 1.0: %f", sc.TieBreakMargin)
	}

	if sc.AutoMatchConfidence < 0 || sc.AutoMatchConfidence > 100 {
		return fmt.Errorf("auto match confidence must be between 0 and 100: %d", sc.AutoMatchConfidence)
	}

	if sc.RemittanceConfidence < 0 || sc.RemittanceConfidence > 100 {
		return fmt.Errorf("remittance confidence must be between 0 and 100: %d", sc.RemittanceConfidence)
	}

	return nil
}

// Clone creates a copy of the scoring configuration
func (sc *ScoringConfig) Clone() *ScoringConfig {
	if sc == nil {
		return nil
	}

	copied := *sc
	return &copied
}

// String returns a human-readable description of the configuration
func (sc *ScoringConfig) String() string {
	return fmt.Sprintf("ScoringConfig{Substring: %.2f, NumericCore: %.2f, CreditMemo: %.2f, AmountProximity: %.2f, Tolerance: %s, AutoMatch: %d}",
		sc.SubstringWeight, sc.NumericCoreWeight, sc.CreditMemoWeight,
		sc.AmountProximityWeight, sc.AmountTolerance, sc.AutoMatchConfidence)
}
