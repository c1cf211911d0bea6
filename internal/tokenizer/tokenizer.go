// Package tokenizer extracts receivable identifier tokens from free-form
// payment text (memo lines, payer names, remittance subjects).
//
// Extraction is pure and deterministic: the same input always yields the
// same token set in the same order, which keeps match explanations
// reproducible for audit. Two passes run over the text:
//  1. Explicit tokens carrying an INV or CM prefix, with any separator
//     between prefix and number ("INV-51201", "inv# 2061").
//  2. Bare numeric runs of at least four digits, treated as implicit
//     invoice numbers.
//
// Sanitization uppercases, strips non-alphanumerics, and normalizes the
// OCR confusions O<->0 and I<->1 inside the numeric core. Tokens are
// deduplicated by sanitized form, keeping first-appearance order.
package tokenizer

import (
	"regexp"
	"strings"
)

// TokenKind classifies how a token was extracted
type TokenKind string

const (
	// KindExplicitInvoice is an INV-prefixed token
	KindExplicitInvoice TokenKind = "EXPLICIT_INVOICE"
	// KindExplicitCreditMemo is a CM-prefixed token
	KindExplicitCreditMemo TokenKind = "EXPLICIT_CREDIT_MEMO"
	// KindImplicitNumeric is a bare numeric run of at least four digits
	KindImplicitNumeric TokenKind = "IMPLICIT_NUMERIC"
)

// Token is one extracted identifier candidate
type Token struct {
	Raw       string    `json:"raw"`
	Sanitized string    `json:"sanitized"`
	Kind      TokenKind `json:"kind"`
}

// IsCreditMemo reports whether the token references a credit memo
func (t Token) IsCreditMemo() bool {
	return t.Kind == KindExplicitCreditMemo
}

// NumericCore returns the digits of the sanitized form with any alpha
// prefix stripped, used for weaker prefix-agnostic matching.
func (t Token) NumericCore() string {
	return strings.TrimLeft(t.Sanitized, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

var (
	explicitPattern = regexp.MustCompile(`(?i)\b(INV|CM)[\s#:\-_./]*([0-9A-Za-z]+)`)
	implicitPattern = regexp.MustCompile(`[0-9A-Za-z]+`)
)

// Extract runs both extraction passes over the text and returns the
// deduplicated token list.
func Extract(text string) []Token {
	var tokens []Token
	seen := make(map[string]bool)

	appendToken := func(tok Token) {
		if tok.Sanitized == "" || seen[tok.Sanitized] {
			return
		}
		seen[tok.Sanitized] = true
		tokens = append(tokens, tok)
	}

	// Pass 1: explicit INV/CM prefixed tokens. Matched spans are blanked
	// so the implicit pass does not re-extract their numbers.
	remainder := explicitPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := explicitPattern.FindStringSubmatch(match)
		prefix := strings.ToUpper(groups[1])
		core := normalizeNumericCore(groups[2])
		if !isAllDigits(core) || len(core) < 2 {
			// Prefix collided with a plain word ("INVOICE"); leave the
			// text for the implicit pass.
			return match
		}

		kind := KindExplicitInvoice
		if prefix == "CM" {
			kind = KindExplicitCreditMemo
		}

		appendToken(Token{
			Raw:       strings.TrimSpace(match),
			Sanitized: prefix + core,
			Kind:      kind,
		})
		return strings.Repeat(" ", len(match))
	})

	// Pass 2: bare numeric runs of at least four digits.
	for _, word := range implicitPattern.FindAllString(remainder, -1) {
		core := Sanitize(word)
		if !isAllDigits(core) || len(core) < 4 {
			continue
		}

		appendToken(Token{
			Raw:       word,
			Sanitized: core,
			Kind:      KindImplicitNumeric,
		})
	}

	return tokens
}

// SanitizedForms returns the sanitized string of every token, in order
func SanitizedForms(tokens []Token) []string {
	forms := make([]string, len(tokens))
	for i, tok := range tokens {
		forms[i] = tok.Sanitized
	}
	return forms
}

// Sanitize canonicalizes a raw token: uppercase, non-alphanumerics
// stripped, OCR confusions normalized in the numeric core. The alpha
// prefix is left untouched so "INV" never becomes "1NV".
func Sanitize(raw string) string {
	cleaned := stripNonAlphanumeric(strings.ToUpper(raw))

	// Split the leading alpha prefix from the numeric core.
	prefixEnd := 0
	for prefixEnd < len(cleaned) && cleaned[prefixEnd] >= 'A' && cleaned[prefixEnd] <= 'Z' {
		prefixEnd++
	}

	// A token that is pure letters has no numeric core to normalize.
	if prefixEnd == len(cleaned) {
		return cleaned
	}

	return cleaned[:prefixEnd] + normalizeNumericCore(cleaned[prefixEnd:])
}

// normalizeNumericCore uppercases, strips separators, and maps the
// common OCR confusions O->0 and I->1 across a numeric run.
func normalizeNumericCore(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'O':
			b.WriteByte('0')
		case r == 'I':
			b.WriteByte('1')
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripNonAlphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
