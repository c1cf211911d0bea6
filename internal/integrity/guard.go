// Package integrity aggregates ERP sync health into a repo-wide posting
// gate. A single failed or partial sync for any entity type blocks all
// posting — the gate never consults an individual payment's state.
package integrity

import (
	"fmt"
	"strings"
	"time"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/pkg/logger"
)

// State is the overall sync health verdict
type State string

const (
	// StateHealthy means every entity type synced cleanly and recently
	StateHealthy State = "HEALTHY"
	// StateDegraded means syncs succeeded but at least one is stale;
	// posting stays allowed, flagged for operators
	StateDegraded State = "DEGRADED"
	// StateBlockPosting means at least one entity type has a failed or
	// partial latest sync; posting is a hard stop
	StateBlockPosting State = "BLOCK_POSTING"
)

// Config holds integrity guard parameters
type Config struct {
	// StalenessWindow is how old the latest successful sync may be
	// before the guard reports Degraded
	StalenessWindow time.Duration `json:"staleness_window"`
}

// DefaultConfig returns the production integrity configuration
func DefaultConfig() *Config {
	return &Config{
		StalenessWindow: 30 * time.Minute,
	}
}

// Validate checks if the integrity configuration is valid
func (c *Config) Validate() error {
	if c.StalenessWindow <= 0 {
		return fmt.Errorf("staleness window must be positive: %s", c.StalenessWindow)
	}
	return nil
}

// Finding is one entity-level observation contributing to the verdict
type Finding struct {
	Entity  models.EntityType `json:"entity"`
	Message string            `json:"message"`
}

// Report is the full integrity verdict with its supporting findings
type Report struct {
	State       State     `json:"state"`
	Findings    []Finding `json:"findings,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// RunRepository is the sync history contract the guard reads from
type RunRepository interface {
	Latest(entity models.EntityType) (*models.SyncRun, bool)
}

// Guard derives the posting gate from sync run history
type Guard struct {
	config *Config
	runs   RunRepository
	logger logger.Logger
}

// NewGuard creates an integrity guard
func NewGuard(config *Config, runs RunRepository) (*Guard, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid integrity config: %w", err)
	}

	if runs == nil {
		return nil, fmt.Errorf("run repository is required")
	}

	return &Guard{
		config: config,
		runs:   runs,
		logger: logger.GetGlobalLogger().WithComponent("integrity_guard"),
	}, nil
}

// Evaluate derives the current verdict from the latest sync run per
// entity type. An entity with no recorded run counts as incomplete sync
// and blocks posting.
func (g *Guard) Evaluate(now time.Time) *Report {
	report := &Report{
		State:       StateHealthy,
		EvaluatedAt: now,
	}

	var stale []Finding

	for _, entity := range models.AllEntityTypes() {
		run, ok := g.runs.Latest(entity)
		if !ok {
			report.State = StateBlockPosting
			report.Findings = append(report.Findings, Finding{
				Entity:  entity,
				Message: "no sync run recorded",
			})
			continue
		}

		if !run.Healthy() {
			report.State = StateBlockPosting
			report.Findings = append(report.Findings, Finding{
				Entity: entity,
				Message: fmt.Sprintf("latest sync %s with %d failed records",
					strings.ToLower(string(run.Status)), run.RecordsFailed),
			})
			continue
		}

		if run.Age(now) > g.config.StalenessWindow {
			stale = append(stale, Finding{
				Entity:  entity,
				Message: fmt.Sprintf("last sync %s ago", run.Age(now).Round(time.Minute)),
			})
		}
	}

	if report.State == StateHealthy && len(stale) > 0 {
		report.State = StateDegraded
		report.Findings = append(report.Findings, stale...)
	}

	if report.State != StateHealthy {
		g.logger.WithFields(logger.Fields{
			"state":    report.State,
			"findings": len(report.Findings),
		}).Warn("Sync integrity degraded")
	}

	return report
}

// CanPostToERP reports whether ERP posting is allowed right now. The
// answer depends only on the repo-wide sync aggregate, never on any
// single payment.
func (g *Guard) CanPostToERP(now time.Time) (bool, string) {
	report := g.Evaluate(now)
	if report.State != StateBlockPosting {
		return true, ""
	}

	reasons := make([]string, len(report.Findings))
	for i, f := range report.Findings {
		reasons[i] = fmt.Sprintf("%s: %s", f.Entity, f.Message)
	}
	return false, strings.Join(reasons, "; ")
}
