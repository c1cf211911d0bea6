package tokenizer

import (
	"reflect"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"inv-51201", "INV51201"},
		{"INV 51201", "INV51201"},
		{"2oo61", "20061"},
		{"2OO6I", "20061"},
		{"cm#104", "CM104"},
		{"  inv:0042  ", "INV0042"},
		{"INVOICE", "INVOICE"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractExplicitTokens(t *testing.T) {
	tokens := Extract("Payment advice INV-51201 and cm# 104 thanks")

	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %v", len(tokens), tokens)
	}

	if tokens[0].Sanitized != "INV51201" || tokens[0].Kind != KindExplicitInvoice {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}

	if tokens[1].Sanitized != "CM104" || tokens[1].Kind != KindExplicitCreditMemo {
		t.Errorf("unexpected second token: %+v", tokens[1])
	}
}

func TestExtractOCRNormalization(t *testing.T) {
	// O and I inside the numeric core are OCR confusions for 0 and 1.
	tokens := Extract("inv# 2oo61")

	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d: %v", len(tokens), tokens)
	}

	if tokens[0].Sanitized != "INV20061" {
		t.Errorf("Sanitized = %q, want INV20061", tokens[0].Sanitized)
	}
}

func TestExtractImplicitNumericRuns(t *testing.T) {
	tokens := Extract("ref 184651 batch 54383 seq 12")

	got := SanitizedForms(tokens)
	want := []string{"184651", "54383"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizedForms = %v, want %v", got, want)
	}

	for _, tok := range tokens {
		if tok.Kind != KindImplicitNumeric {
			t.Errorf("expected implicit token, got %+v", tok)
		}
	}
}

func TestExtractDeduplicatesBySanitizedForm(t *testing.T) {
	tokens := Extract("INV-51201 INV 51201 inv#5I2O1")

	if len(tokens) != 1 {
		t.Fatalf("expected 1 deduplicated token, got %d: %v", len(tokens), tokens)
	}

	if tokens[0].Sanitized != "INV51201" {
		t.Errorf("Sanitized = %q, want INV51201", tokens[0].Sanitized)
	}
}

func TestExtractIgnoresPlainWords(t *testing.T) {
	tokens := Extract("INVOICE payment for services rendered")

	if len(tokens) != 0 {
		t.Errorf("expected no tokens from plain words, got %v", tokens)
	}
}

func TestExtractDeterminism(t *testing.T) {
	text := "Payment advice INV-51201, ref 184651, cm#104"

	first := Extract(text)
	for i := 0; i < 10; i++ {
		if got := Extract(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("extraction not deterministic: run %d yielded %v, first run %v", i, got, first)
		}
	}
}

func TestTokenNumericCore(t *testing.T) {
	tok := Token{Sanitized: "INV51201", Kind: KindExplicitInvoice}
	if got := tok.NumericCore(); got != "51201" {
		t.Errorf("NumericCore = %q, want 51201", got)
	}

	bare := Token{Sanitized: "184651", Kind: KindImplicitNumeric}
	if got := bare.NumericCore(); got != "184651" {
		t.Errorf("NumericCore = %q, want 184651", got)
	}
}
