// Package taxonomy normalizes heterogeneous exception signals into the
// stable two-level classification (core type, reason code, label).
//
// Signals are set independently by upstream stages — the remittance
// parser, sync feed, settlement tracker, and decision engine — and this
// resolver is the single source of truth for turning them into exactly
// one classification. Precedence is data: an ordered rule list evaluated
// first-match-wins, never nested conditionals.
//
// Resolution is pure and idempotent. Resolving twice on unchanged input
// yields identical output, and an already-valid classification is never
// overwritten by a later call.
package taxonomy

import (
	"strings"

	"ar-reconciliation-service/internal/models"
)

// Signals is the tagged input to classification. Each field is owned by
// the upstream stage that observes it; the resolver only reads.
type Signals struct {
	ParseError            bool
	InvoiceStatusIssue    bool
	CreditMemoStatusIssue bool
	SettlementPending     bool
	ACHReturn             bool
	SettlementFailed      bool
	OnAccount             bool
	JERequired            bool
	LegacyType            models.ExceptionType
}

// Rule maps a signal predicate to a fixed classification
type Rule struct {
	Name           string
	Applies        func(Signals) bool
	Classification models.Classification
}

// Rules returns the ordered rule list. Order is precedence: the first
// applicable rule wins.
func Rules() []Rule {
	return []Rule{
		{
			Name:    "parse-error",
			Applies: func(s Signals) bool { return s.ParseError },
			Classification: models.Classification{
				CoreType:   models.CoreExtraction,
				ReasonCode: models.ReasonRemitParseFailed,
				Label:      "Remittance could not be parsed",
			},
		},
		{
			Name:    "invoice-status",
			Applies: func(s Signals) bool { return s.InvoiceStatusIssue },
			Classification: models.Classification{
				CoreType:   models.CoreReceivableState,
				ReasonCode: models.ReasonInvoiceClosed,
				Label:      "Referenced invoice is closed",
			},
		},
		{
			Name:    "credit-memo-status",
			Applies: func(s Signals) bool { return s.CreditMemoStatusIssue },
			Classification: models.Classification{
				CoreType:   models.CoreReceivableState,
				ReasonCode: models.ReasonCreditMemoClosed,
				Label:      "Referenced credit memo is closed",
			},
		},
		{
			Name:    "settlement-pending",
			Applies: func(s Signals) bool { return s.SettlementPending },
			Classification: models.Classification{
				CoreType:   models.CoreSettlement,
				ReasonCode: models.ReasonSettlementPending,
				Label:      "Bank settlement not yet final",
			},
		},
		{
			Name:    "ach-return",
			Applies: func(s Signals) bool { return s.ACHReturn },
			Classification: models.Classification{
				CoreType:   models.CoreSettlement,
				ReasonCode: models.ReasonACHReturn,
				Label:      "Payment returned by bank (ACH)",
			},
		},
		{
			Name:    "settlement-failed",
			Applies: func(s Signals) bool { return s.SettlementFailed },
			Classification: models.Classification{
				CoreType:   models.CoreSettlement,
				ReasonCode: models.ReasonGhostPayment,
				Label:      "Settlement never finalized (ghost payment)",
			},
		},
		{
			Name:    "on-account",
			Applies: func(s Signals) bool { return s.OnAccount },
			Classification: models.Classification{
				CoreType:   models.CoreApplication,
				ReasonCode: models.ReasonOnAccount,
				Label:      "Funds applied on account",
			},
		},
		{
			Name:    "je-required",
			Applies: func(s Signals) bool { return s.JERequired },
			Classification: models.Classification{
				CoreType:   models.CoreApplication,
				ReasonCode: models.ReasonJERequired,
				Label:      "Manual journal entry required",
			},
		},
		{
			Name:    "legacy-type",
			Applies: func(s Signals) bool { return legacyClassification(s.LegacyType) != nil },
			// Classification is resolved per legacy value in Resolve.
		},
	}
}

var legacyMapping = map[models.ExceptionType]models.Classification{
	models.ExceptionInvalidRef: {
		CoreType:   models.CoreMatching,
		ReasonCode: models.ReasonNoReferenceMatch,
		Label:      "No matching reference found",
	},
	models.ExceptionAmbiguousMatch: {
		CoreType:   models.CoreMatching,
		ReasonCode: models.ReasonAmbiguousReference,
		Label:      "Multiple near-equal candidates",
	},
	models.ExceptionShortPay: {
		CoreType:   models.CoreMatching,
		ReasonCode: models.ReasonShortPayment,
		Label:      "Payment below referenced amount",
	},
	models.ExceptionOverPay: {
		CoreType:   models.CoreMatching,
		ReasonCode: models.ReasonOverPayment,
		Label:      "Payment above referenced amount",
	},
}

func legacyClassification(t models.ExceptionType) *models.Classification {
	if c, ok := legacyMapping[t]; ok {
		return &c
	}
	return nil
}

// Resolve maps signals to a classification by walking the ordered rule
// list. The second return is false when no signal applies.
func Resolve(signals Signals) (models.Classification, bool) {
	for _, rule := range Rules() {
		if !rule.Applies(signals) {
			continue
		}

		if rule.Name == "legacy-type" {
			return *legacyClassification(signals.LegacyType), true
		}
		return rule.Classification, true
	}

	return models.Classification{}, false
}

// Apply resolves signals and writes the classification onto the payment.
// An already-valid classification is never overwritten — the first
// assigned reason code sticks until an operator clears it. The first
// classification also sets the resolution state to Open. Posted payments
// are frozen and left untouched.
func Apply(p *models.Payment, signals Signals) models.Classification {
	if !p.IsMutable() {
		return p.Classification
	}

	if p.Classification.IsValid() {
		return p.Classification
	}

	classification, ok := Resolve(signals)
	if !ok {
		return p.Classification
	}

	p.Classification = classification
	if p.ResolutionState == models.ResolutionNone {
		p.ResolutionState = models.ResolutionOpen
	}

	return p.Classification
}

// SignalsFromPayment derives the resolver input from the payment's own
// fields. The receivable status flags are set by the matching stage
// when an extracted reference resolves to a closed invoice or credit
// memo.
func SignalsFromPayment(p *models.Payment) Signals {
	return Signals{
		ParseError:            p.RemitParseError,
		InvoiceStatusIssue:    p.InvoiceStatusIssue,
		CreditMemoStatusIssue: p.CreditMemoStatusIssue,
		SettlementPending:     p.Settlement.Status == models.SettlementPending,
		ACHReturn:        strings.EqualFold(p.Settlement.Reason, string(models.ReasonACHReturn)),
		SettlementFailed: p.Settlement.Status == models.SettlementFailed,
		OnAccount:        p.OnAccount,
		JERequired:       p.JERequired,
		LegacyType:       p.ExceptionType,
	}
}
