package matcher

import (
	"fmt"
	"sort"
	"strings"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/tokenizer"

	"github.com/shopspring/decimal"
)

// CandidateScore is one receivable ranked against a payment
type CandidateScore struct {
	Item    *models.ReceivableItem
	Score   float64
	Signals []models.MatchSignal
}

// Scorer ranks open receivables against extracted tokens and a payment
// amount. Stateless apart from its configuration; safe for concurrent
// use across payments.
type Scorer struct {
	config *ScoringConfig
}

// NewScorer creates a scorer with the given configuration
func NewScorer(config *ScoringConfig) *Scorer {
	if config == nil {
		config = DefaultScoringConfig()
	}

	return &Scorer{config: config}
}

// Config returns the scorer's configuration
func (s *Scorer) Config() *ScoringConfig {
	return s.config
}

// Score ranks the candidate receivables. Items scoring at or below the
// configured minimum are discarded. Results are ordered by score
// descending with identifier ascending as a deterministic tiebreaker for
// ordering only — near-ties themselves are the decision engine's call.
func (s *Scorer) Score(tokens []tokenizer.Token, paymentAmount decimal.Decimal, items []*models.ReceivableItem) []CandidateScore {
	var results []CandidateScore

	for _, item := range items {
		if !item.IsOpen() {
			continue
		}

		score, signals := s.scoreItem(tokens, paymentAmount, item)
		if score <= s.config.MinCandidateScore {
			continue
		}

		results = append(results, CandidateScore{
			Item:    item,
			Score:   score,
			Signals: signals,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.Identifier < results[j].Item.Identifier
	})

	return results
}

// scoreItem computes one receivable's score: the best reference signal
// across all tokens plus the amount proximity signal, capped at 1.0.
func (s *Scorer) scoreItem(tokens []tokenizer.Token, paymentAmount decimal.Decimal, item *models.ReceivableItem) (float64, []models.MatchSignal) {
	sanitizedIdent := tokenizer.Sanitize(item.Identifier)
	identCore := strings.TrimLeft(sanitizedIdent, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")

	var best models.MatchSignal
	for _, tok := range tokens {
		signal, ok := s.referenceSignal(tok, item, sanitizedIdent, identCore)
		if ok && signal.Weight > best.Weight {
			best = signal
		}
	}

	score := 0.0
	var signals []models.MatchSignal

	if best.Weight > 0 {
		score += best.Weight
		signals = append(signals, best)
	}

	if models.AmountsWithinTolerance(item.AbsoluteAmount(), paymentAmount.Abs(), s.config.AmountTolerance) {
		proximity := models.MatchSignal{
			Description: fmt.Sprintf("amount %s within %s of payment", item.Amount, s.config.AmountTolerance),
			Weight:      s.config.AmountProximityWeight,
		}
		score += proximity.Weight
		signals = append(signals, proximity)
	}

	if score > 1.0 {
		score = 1.0
	}

	return score, signals
}

// referenceSignal evaluates a single token against the receivable
// identifier and returns the strongest applicable signal.
func (s *Scorer) referenceSignal(tok tokenizer.Token, item *models.ReceivableItem, sanitizedIdent, identCore string) (models.MatchSignal, bool) {
	substring := containsEitherDirection(tok.Sanitized, sanitizedIdent)

	// CM-prefixed tokens matching a credit memo identifier outrank the
	// plain substring award.
	if tok.IsCreditMemo() && item.Type == models.ReceivableCreditMemo && substring {
		return models.MatchSignal{
			Description: fmt.Sprintf("credit memo token %s matches %s", tok.Sanitized, item.Identifier),
			Weight:      s.config.CreditMemoWeight,
		}, true
	}

	if substring {
		return models.MatchSignal{
			Description: fmt.Sprintf("token %s matches identifier %s", tok.Sanitized, item.Identifier),
			Weight:      s.config.SubstringWeight,
		}, true
	}

	tokCore := tok.NumericCore()
	if tokCore != "" && identCore != "" && tokCore == identCore {
		return models.MatchSignal{
			Description: fmt.Sprintf("numeric core %s matches identifier %s", tokCore, item.Identifier),
			Weight:      s.config.NumericCoreWeight,
		}, true
	}

	return models.MatchSignal{}, false
}

func containsEitherDirection(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
