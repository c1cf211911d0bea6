package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ar-reconciliation-service/cmd/arrecon/config"
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/reconciler"
	"ar-reconciliation-service/internal/reporter"
	"ar-reconciliation-service/internal/snapshot"
	"ar-reconciliation-service/internal/store"
	"ar-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the evaluate command
var (
	snapshotFile        string
	outputFormat        string
	outputFile          string
	asOf                string
	amountTolerance     float64
	autoMatchConfidence int
	ghostThresholdHours float64
	stalenessMinutes    int
	maxDecisions        int
	showProgress        bool
	requirePostable     bool
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate payments against open receivables",
	Long: `Evaluate loads a working-set snapshot, runs every eligible payment
through the reconciliation engine, applies settlement observations from
the bank feed, and reports the outcome.

The snapshot is a JSON document holding payments, receivables,
remittance advices, bank transactions, and sync run history.

Examples:
  # Basic evaluation with a console report
  arrecon evaluate --snapshot working-set.json

  # JSON report written to a file
  arrecon evaluate --snapshot working-set.json --output-format json --output-file report.json

  # Custom matching thresholds
  arrecon evaluate --snapshot working-set.json \
    --amount-tolerance 1.00 --auto-match-confidence 95

  # Ghost detection as of a specific moment
  arrecon evaluate --snapshot working-set.json --as-of 2026-03-02T09:00:00Z

  # With progress indicators
  arrecon evaluate --snapshot working-set.json --progress`,

	PreRunE: validateEvaluateFlags,
	RunE:    runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	// Required flags
	evaluateCmd.Flags().StringVarP(&snapshotFile, "snapshot", "s", "", "path to working-set snapshot JSON file (required)")

	// Output flags
	evaluateCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json")
	evaluateCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	evaluateCmd.Flags().IntVar(&maxDecisions, "max-decisions", 0, "maximum decisions to include in the report (0 = default)")

	// Evaluation clock
	evaluateCmd.Flags().StringVar(&asOf, "as-of", "", "evaluation time (RFC3339, default: now)")

	// Matching configuration flags
	evaluateCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0, "absolute amount tolerance in currency units (0 = default)")
	evaluateCmd.Flags().IntVar(&autoMatchConfidence, "auto-match-confidence", 0, "minimum confidence (0-100) for auto-matching (0 = default)")

	// Settlement and integrity flags
	evaluateCmd.Flags().Float64Var(&ghostThresholdHours, "ghost-threshold-hours", 0, "hours before a pending settlement is flagged as a ghost (0 = default)")
	evaluateCmd.Flags().IntVar(&stalenessMinutes, "staleness-minutes", 0, "minutes before the latest sync run is considered stale (0 = default)")

	// UI flags
	evaluateCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")
	evaluateCmd.Flags().BoolVar(&requirePostable, "require-postable", false, "exit with an error when the integrity gate blocks ERP posting")

	evaluateCmd.MarkFlagRequired("snapshot")

	// Bind flags to viper
	viper.BindPFlag("snapshot", evaluateCmd.Flags().Lookup("snapshot"))
	viper.BindPFlag("output-format", evaluateCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", evaluateCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("max-decisions", evaluateCmd.Flags().Lookup("max-decisions"))
	viper.BindPFlag("as-of", evaluateCmd.Flags().Lookup("as-of"))
	viper.BindPFlag("amount-tolerance", evaluateCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("auto-match-confidence", evaluateCmd.Flags().Lookup("auto-match-confidence"))
	viper.BindPFlag("ghost-threshold-hours", evaluateCmd.Flags().Lookup("ghost-threshold-hours"))
	viper.BindPFlag("staleness-minutes", evaluateCmd.Flags().Lookup("staleness-minutes"))
	viper.BindPFlag("progress", evaluateCmd.Flags().Lookup("progress"))
	viper.BindPFlag("require-postable", evaluateCmd.Flags().Lookup("require-postable"))
}

func validateEvaluateFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	snapshotFile = viper.GetString("snapshot")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	maxDecisions = viper.GetInt("max-decisions")
	asOf = viper.GetString("as-of")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	autoMatchConfidence = viper.GetInt("auto-match-confidence")
	ghostThresholdHours = viper.GetFloat64("ghost-threshold-hours")
	stalenessMinutes = viper.GetInt("staleness-minutes")
	showProgress = viper.GetBool("progress")
	requirePostable = viper.GetBool("require-postable")

	if snapshotFile == "" {
		return fmt.Errorf("snapshot is required")
	}

	if err := validateFileExists(snapshotFile, "snapshot file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", outputFormat)
	}

	if asOf != "" {
		if _, err := time.Parse(time.RFC3339, asOf); err != nil {
			return fmt.Errorf("invalid as-of time. Use RFC3339 (e.g. 2026-03-02T09:00:00Z): %w", err)
		}
	}

	if amountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	if autoMatchConfidence < 0 || autoMatchConfidence > 100 {
		return fmt.Errorf("auto-match confidence must be between 0 and 100")
	}
	if ghostThresholdHours < 0 {
		return fmt.Errorf("ghost threshold hours cannot be negative")
	}
	if stalenessMinutes < 0 {
		return fmt.Errorf("staleness minutes cannot be negative")
	}
	if maxDecisions < 0 {
		return fmt.Errorf("max decisions cannot be negative")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if asOf != "" {
		t, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return fmt.Errorf("invalid as-of time: %w", err)
		}
		now = t
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting evaluation...\n")
		fmt.Fprintf(os.Stderr, "Snapshot: %s\n", snapshotFile)
		fmt.Fprintf(os.Stderr, "As of: %s\n", now.Format(time.RFC3339))
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	scoringConfig := config.CreateScoringConfig(amountTolerance, autoMatchConfidence)
	settlementConfig := config.CreateSettlementConfig(ghostThresholdHours)
	integrityConfig := config.CreateIntegrityConfig(stalenessMinutes)
	serviceConfig := config.CreateServiceConfig(scoringConfig, settlementConfig, integrityConfig)
	reportConfig := config.CreateReportConfig(outputFormat, maxDecisions)

	if err := config.ValidateConfig(serviceConfig, reportConfig); err != nil {
		return err
	}

	// Load the working set
	snap, err := snapshot.Load(snapshotFile)
	if err != nil {
		return err
	}

	st := store.NewMemoryStore()
	err = logger.TimedOperation("apply snapshot", nil, func() error {
		return snap.Apply(st)
	})
	if err != nil {
		return fmt.Errorf("failed to apply snapshot: %w", err)
	}

	// Create reconciliation service
	service, err := reconciler.NewService(st, serviceConfig)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation service: %w", err)
	}

	// Wire progress reporting
	var tracker *logger.ProgressTracker
	if showProgress {
		service.AddProgressCallback(func(progress *reconciler.BatchProgress) {
			if tracker == nil {
				tracker = logger.NewProgressTracker(logger.ProgressConfig{
					Operation: "payment evaluation",
					Total:     int64(progress.TotalPayments),
				})
			}
			tracker.Update(int64(progress.Completed))
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.Completed, progress.TotalPayments,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	// Evaluate every eligible payment
	batch, err := service.EvaluateBatch(now)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if showProgress {
		if tracker != nil {
			tracker.Complete()
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	// Feed bank transactions through the settlement tracker
	if err := applyBankFeed(service, snap.BankTransactions, now); err != nil {
		return err
	}

	// Flag settlements that never confirmed
	ghosts, err := service.ReevaluateSettlements(now)
	if err != nil {
		return fmt.Errorf("settlement re-evaluation failed: %w", err)
	}

	// Assess the posting gate
	integrityReport := service.IntegrityReport(now)

	// Generate report
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	report := &reporter.Report{
		GeneratedAt: now,
		Batch:       batch,
		Integrity:   integrityReport,
	}
	if err := reportGenerator.GenerateReport(report, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// The report is written either way; the gate only decides the exit
	// status.
	if requirePostable {
		if err := service.EnsurePostable(now); err != nil {
			return err
		}
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nEvaluation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Evaluated %d payments: %d auto-matched, %d exceptions.\n",
			batch.Evaluated, batch.AutoMatched, batch.Exceptions)
		if len(ghosts) > 0 {
			fmt.Fprintf(os.Stderr, "Flagged %d ghost settlements.\n", len(ghosts))
		}
		if ok, reason := service.CanPostToERP(now); !ok {
			fmt.Fprintf(os.Stderr, "ERP posting blocked: %s\n", reason)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", batch.Elapsed)
	}

	return nil
}

// applyBankFeed runs snapshot bank transactions through the settlement
// lifecycle in observation order.
func applyBankFeed(service *reconciler.Service, transactions []*models.BankTransaction, now time.Time) error {
	for _, txn := range transactions {
		switch txn.Stage {
		case models.BankStagePreliminary:
			if _, err := service.RecordSettlementObservation(txn, now); err != nil {
				return fmt.Errorf("settlement observation %s failed: %w", txn.BankReference, err)
			}
		case models.BankStageFinal:
			if _, err := service.FinalizeSettlement(txn, now); err != nil {
				return fmt.Errorf("settlement finalization %s failed: %w", txn.BankReference, err)
			}
		}
	}
	return nil
}
