// Package reporter renders batch evaluation results and the posting
// gate state for operators.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured output for programmatic consumption
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"ar-reconciliation-service/internal/integrity"
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	return f == FormatConsole || f == FormatJSON
}

// ReportConfig controls report contents
type ReportConfig struct {
	Format              OutputFormat `json:"format"`
	IncludeDecisions    bool         `json:"include_decisions"`
	IncludeExplanations bool         `json:"include_explanations"`
	MaxDecisions        int          `json:"max_decisions"`
}

// DefaultReportConfig returns the default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeDecisions:    true,
		IncludeExplanations: true,
		MaxDecisions:        50,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("unsupported output format: %s", c.Format)
	}
	if c.MaxDecisions < 0 {
		return fmt.Errorf("max decisions cannot be negative: %d", c.MaxDecisions)
	}
	return nil
}

// Report is the composed document rendered by the generator
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Batch       *reconciler.BatchResult `json:"batch"`
	Integrity   *integrity.Report       `json:"integrity,omitempty"`
}

// ReportGenerator renders reconciliation reports
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the batch result and integrity state to the writer
func (rg *ReportGenerator) GenerateReport(report *Report, writer io.Writer) error {
	if report == nil || report.Batch == nil {
		return fmt.Errorf("report requires a batch result")
	}

	switch rg.config.Format {
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	default:
		return rg.generateConsoleReport(report, writer)
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	batch := report.Batch

	fmt.Fprintf(writer, "AR RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", batch.Elapsed)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Payments Evaluated: %d\n", batch.Evaluated)
	fmt.Fprintf(writer, "  Auto-Matched: %d (%.1f%%)\n", batch.AutoMatched, batch.MatchRate()*100)
	fmt.Fprintf(writer, "  Exceptions:   %d\n", batch.Exceptions)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Amount Matched:   %s\n", batch.AmountMatched.StringFixed(2))
	fmt.Fprintf(writer, "Amount Unmatched: %s\n", batch.AmountUnmatched.StringFixed(2))
	fmt.Fprintf(writer, "\n")

	if len(batch.ByException) > 0 {
		fmt.Fprintf(writer, "=== EXCEPTIONS BY TYPE ===\n")
		rg.printExceptionBreakdown(batch.ByException, writer)
		fmt.Fprintf(writer, "\n")
	}

	if report.Integrity != nil {
		fmt.Fprintf(writer, "=== POSTING GATE ===\n")
		rg.printIntegrity(report.Integrity, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDecisions && len(batch.Decisions) > 0 {
		fmt.Fprintf(writer, "=== DECISIONS ===\n")
		rg.printDecisions(batch, writer)
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (rg *ReportGenerator) printExceptionBreakdown(byException map[models.ExceptionType]int, writer io.Writer) {
	types := make([]string, 0, len(byException))
	for t := range byException {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		fmt.Fprintf(writer, "  %-18s %d\n", t, byException[models.ExceptionType(t)])
	}
}

func (rg *ReportGenerator) printIntegrity(report *integrity.Report, writer io.Writer) {
	fmt.Fprintf(writer, "State: %s\n", report.State)
	for _, finding := range report.Findings {
		fmt.Fprintf(writer, "  %s: %s\n", finding.Entity, finding.Message)
	}
}

func (rg *ReportGenerator) printDecisions(batch *reconciler.BatchResult, writer io.Writer) {
	limit := len(batch.Decisions)
	if rg.config.MaxDecisions > 0 && limit > rg.config.MaxDecisions {
		limit = rg.config.MaxDecisions
	}

	for _, decision := range batch.Decisions[:limit] {
		line := fmt.Sprintf("  %s  %s  confidence=%d", decision.PaymentID, decision.Status, decision.Confidence)
		if decision.ExceptionType != models.ExceptionNone {
			line += fmt.Sprintf("  exception=%s", decision.ExceptionType)
		}
		fmt.Fprintln(writer, line)

		if rg.config.IncludeExplanations && decision.Explanation != nil {
			fmt.Fprintf(writer, "      %s\n", decision.Explanation.Summary)
		}
	}

	if limit < len(batch.Decisions) {
		fmt.Fprintf(writer, "  ... %d more\n", len(batch.Decisions)-limit)
	}
}
