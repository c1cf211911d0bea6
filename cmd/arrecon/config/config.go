// Package config builds component configurations for the CLI from flag
// values, layering overrides on top of the library defaults.
package config

import (
	"fmt"
	"time"

	"ar-reconciliation-service/internal/integrity"
	"ar-reconciliation-service/internal/matcher"
	"ar-reconciliation-service/internal/reconciler"
	"ar-reconciliation-service/internal/reporter"
	"ar-reconciliation-service/internal/settlement"

	"github.com/shopspring/decimal"
)

// CreateScoringConfig creates a scoring configuration with the specified
// CLI overrides applied on top of the defaults.
func CreateScoringConfig(amountTolerance float64, autoMatchConfidence int) *matcher.ScoringConfig {
	config := matcher.DefaultScoringConfig()

	if amountTolerance > 0 {
		config.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	}
	if autoMatchConfidence > 0 {
		config.AutoMatchConfidence = autoMatchConfidence
	}

	return config
}

// CreateSettlementConfig creates a settlement tracking configuration
func CreateSettlementConfig(ghostThresholdHours float64) *settlement.Config {
	config := settlement.DefaultConfig()

	if ghostThresholdHours > 0 {
		config.GhostThresholdHours = ghostThresholdHours
	}

	return config
}

// CreateIntegrityConfig creates a sync integrity configuration
func CreateIntegrityConfig(stalenessMinutes int) *integrity.Config {
	config := integrity.DefaultConfig()

	if stalenessMinutes > 0 {
		config.StalenessWindow = time.Duration(stalenessMinutes) * time.Minute
	}

	return config
}

// CreateServiceConfig bundles the component configurations for the
// reconciliation service.
func CreateServiceConfig(scoring *matcher.ScoringConfig, settlementConfig *settlement.Config, integrityConfig *integrity.Config) *reconciler.Config {
	config := reconciler.DefaultConfig()

	if scoring != nil {
		config.Scoring = scoring
	}
	if settlementConfig != nil {
		config.Settlement = settlementConfig
	}
	if integrityConfig != nil {
		config.Integrity = integrityConfig
	}

	return config
}

// CreateReportConfig creates a report configuration for the specified
// output format.
func CreateReportConfig(format string, maxDecisions int) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
		config.IncludeDecisions = true
		config.IncludeExplanations = true
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeDecisions = true
		config.IncludeExplanations = false // Keep JSON output focused
	}

	if maxDecisions > 0 {
		config.MaxDecisions = maxDecisions
	}

	return config
}

// ValidateConfig validates the assembled configurations before the
// service is constructed, so flag mistakes surface as one clear error.
func ValidateConfig(serviceConfig *reconciler.Config, reportConfig *reporter.ReportConfig) error {
	if serviceConfig == nil {
		return fmt.Errorf("service configuration is required")
	}
	if err := serviceConfig.Validate(); err != nil {
		return fmt.Errorf("service configuration invalid: %w", err)
	}

	if reportConfig == nil {
		return fmt.Errorf("report configuration is required")
	}
	if err := reportConfig.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}

	return nil
}
