// Command snapshot_generator produces working-set snapshot JSON files
// for manual testing of the evaluate command. Each scenario exercises a
// different slice of the reconciliation lifecycle.
//
// Usage:
//
//	go run snapshot_generator.go -scenario=clean -output=clean.json
//	go run snapshot_generator.go -scenario=all -output-dir=../generated
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/snapshot"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var scenarios = map[string]func(now time.Time) *snapshot.Snapshot{
	"clean":      cleanScenario,
	"exceptions": exceptionScenario,
	"remittance": remittanceScenario,
	"ghost":      ghostScenario,
	"stale-sync": staleSyncScenario,
}

func main() {
	var (
		scenario  = flag.String("scenario", "", "Scenario to generate: clean, exceptions, remittance, ghost, stale-sync, or 'all'")
		output    = flag.String("output", "", "Output file (single scenario only, default: <scenario>.json)")
		outputDir = flag.String("output-dir", ".", "Output directory")
		list      = flag.Bool("list", false, "List available scenarios")
	)
	flag.Parse()

	if *list {
		for name := range scenarios {
			fmt.Println(name)
		}
		return
	}

	now := time.Now().UTC().Truncate(time.Second)

	switch {
	case *scenario == "all":
		for name, build := range scenarios {
			path := filepath.Join(*outputDir, name+".json")
			if err := writeSnapshot(build(now), path); err != nil {
				log.Fatalf("generate %s: %v", name, err)
			}
			fmt.Printf("wrote %s\n", path)
		}
	case *scenario != "":
		build, ok := scenarios[*scenario]
		if !ok {
			log.Fatalf("unknown scenario: %s", *scenario)
		}
		path := *output
		if path == "" {
			path = filepath.Join(*outputDir, *scenario+".json")
		}
		if err := writeSnapshot(build(now), path); err != nil {
			log.Fatalf("generate %s: %v", *scenario, err)
		}
		fmt.Printf("wrote %s\n", path)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func writeSnapshot(snap *snapshot.Snapshot, path string) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("generated snapshot invalid: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func payment(amount, memo, customerID string, now time.Time) *models.Payment {
	p := models.NewPayment(money(amount), "USD", now.Add(-2*time.Hour), "ACME Corp", memo)
	p.CustomerID = customerID
	return p
}

func invoice(identifier, amount, customerID string) *models.ReceivableItem {
	return models.NewReceivableItem(identifier, models.ReceivableInvoice, money(amount), customerID)
}

func creditMemo(identifier, amount, customerID string) *models.ReceivableItem {
	return models.NewReceivableItem(identifier, models.ReceivableCreditMemo, money(amount), customerID)
}

func healthySyncRuns(now time.Time) []*models.SyncRun {
	var runs []*models.SyncRun
	for _, entity := range models.AllEntityTypes() {
		runs = append(runs, &models.SyncRun{
			ID:            uuid.NewString(),
			Entity:        entity,
			Status:        models.SyncSuccess,
			StartedAt:     now.Add(-10 * time.Minute),
			CompletedAt:   now.Add(-5 * time.Minute),
			RecordsSynced: 250,
			WatermarkFrom: now.Add(-24 * time.Hour),
			WatermarkTo:   now.Add(-5 * time.Minute),
		})
	}
	return runs
}

// cleanScenario yields payments that all auto-match by memo reference.
func cleanScenario(now time.Time) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Payments: []*models.Payment{
			payment("125.50", "Payment for INV-1001", "CUST-1", now),
			payment("300.00", "Settling INV-1002", "CUST-1", now),
		},
		Receivables: []*models.ReceivableItem{
			invoice("INV-1001", "125.50", "CUST-1"),
			invoice("INV-1002", "300.00", "CUST-1"),
		},
		SyncRuns: healthySyncRuns(now),
	}
}

// exceptionScenario covers short pay, invalid reference, and an
// ambiguous near-tie.
func exceptionScenario(now time.Time) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Payments: []*models.Payment{
			payment("100.00", "Payment for INV-2001", "CUST-2", now),
			payment("75.00", "wire transfer thanks", "CUST-2", now),
			payment("50.00", "INV-2002 and INV-2003", "CUST-2", now),
		},
		Receivables: []*models.ReceivableItem{
			invoice("INV-2001", "125.50", "CUST-2"),
			invoice("INV-2002", "50.00", "CUST-2"),
			invoice("INV-2003", "50.00", "CUST-2"),
		},
		SyncRuns: healthySyncRuns(now),
	}
}

// remittanceScenario carries a linked remittance advice spanning two
// invoices and a credit memo.
func remittanceScenario(now time.Time) *snapshot.Snapshot {
	pay := payment("380.50", "per attached remittance", "CUST-3", now)
	remit := &models.Remittance{
		ID:         uuid.NewString(),
		PaymentID:  pay.ID,
		LinkStatus: models.RemittanceLinked,
		Confidence: 0.98,
		References: []models.RemittanceReference{
			{Identifier: "INV-3001", Amount: money("125.50")},
			{Identifier: "INV-3002", Amount: money("300.00")},
			{Identifier: "CM-300", Amount: money("-45.00"), CreditMemo: true},
		},
	}

	return &snapshot.Snapshot{
		Payments: []*models.Payment{pay},
		Receivables: []*models.ReceivableItem{
			invoice("INV-3001", "125.50", "CUST-3"),
			invoice("INV-3002", "300.00", "CUST-3"),
			creditMemo("CM-300", "-45.00", "CUST-3"),
		},
		Remittances: []*models.Remittance{remit},
		SyncRuns:    healthySyncRuns(now),
	}
}

// ghostScenario seeds a preliminary bank observation old enough to trip
// ghost detection on the next re-evaluation.
func ghostScenario(now time.Time) *snapshot.Snapshot {
	pay := payment("210.00", "Payment for INV-4001", "CUST-4", now)

	return &snapshot.Snapshot{
		Payments: []*models.Payment{pay},
		Receivables: []*models.ReceivableItem{
			invoice("INV-4001", "210.00", "CUST-4"),
		},
		BankTransactions: []*models.BankTransaction{
			{
				BankReference: "WIRE-4001",
				PaymentID:     pay.ID,
				Amount:        money("210.00"),
				ObservedAt:    now.Add(-72 * time.Hour),
				Stage:         models.BankStagePreliminary,
			},
		},
		SyncRuns: healthySyncRuns(now),
	}
}

// staleSyncScenario leaves one entity with a failed sync so the posting
// gate blocks.
func staleSyncScenario(now time.Time) *snapshot.Snapshot {
	snap := cleanScenario(now)
	snap.SyncRuns = append(snap.SyncRuns, &models.SyncRun{
		ID:            uuid.NewString(),
		Entity:        models.EntityInvoices,
		Status:        models.SyncFailed,
		StartedAt:     now.Add(-2 * time.Minute),
		CompletedAt:   now.Add(-1 * time.Minute),
		RecordsSynced: 12,
		RecordsFailed: 38,
		Errors:        []string{"upstream timeout"},
		WatermarkFrom: now.Add(-24 * time.Hour),
		WatermarkTo:   now.Add(-1 * time.Minute),
	})
	return snap
}
