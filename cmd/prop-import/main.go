package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/netopsio/infoblox-sync/awsvpc"
	"github.com/netopsio/infoblox-sync/config"
	"github.com/netopsio/infoblox-sync/database"
	"github.com/netopsio/infoblox-sync/infoblox"
	"github.com/netopsio/infoblox-sync/report"
	"github.com/netopsio/infoblox-sync/sync"
)

const ipamTimeout = 60 * time.Second

type consoleLogger struct{}

func (l *consoleLogger) Log(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func main() {
	envFile := flag.String("env-file", "config.env", "Path to the env file with InfoBlox settings")
	csvFile := flag.String("csv-file", "", "Path to the property file CSV (overrides PROP_CSV_FILE)")
	networkView := flag.String("network-view", "", "InfoBlox network view to sync against (overrides NETWORK_VIEW)")
	createMissing := flag.Bool("create-missing", false, "Create networks that are missing from InfoBlox")
	dryRun := flag.Bool("dry-run", false, "Report what would change without modifying InfoBlox")
	reportsDir := flag.String("reports-dir", "reports", "Directory for report artifacts")
	flag.Parse()

	logger := &consoleLogger{}
	now := time.Now()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}
	if *csvFile != "" {
		cfg.PropCSVFile = *csvFile
	}
	if *networkView != "" {
		cfg.NetworkView = *networkView
	}

	client := infoblox.GetClient(cfg.GridMaster, cfg.Username, cfg.Password, ipamTimeout)
	err = infoblox.VerifyNetworkView(client, cfg.NetworkView)
	if err != nil {
		log.Fatalf("Error verifying network view: %s", err)
	}

	records, err := awsvpc.LoadPropertyCSV(cfg.PropCSVFile, clock.New(), logger)
	if err != nil {
		log.Fatalf("Error loading property records: %s", err)
	}
	if len(records) == 0 {
		log.Fatalf("No property networks to sync")
	}

	eaResult, err := sync.EnsureRequiredEAs(client, records, *dryRun, logger)
	if err != nil {
		log.Fatalf("Error provisioning extensible attribute definitions: %s", err)
	}
	for name, err := range eaResult.Failed {
		logger.Log("Attribute definition %s could not be created: %s", name, err)
	}

	reconciler := &sync.Reconciler{IPAM: client, Logger: logger}
	buckets := reconciler.Reconcile(records, cfg.NetworkView)
	logger.Log("Classification: %d matched, %d discrepant, %d missing, %d containers, %d errors",
		len(buckets.Matched), len(buckets.Discrepant), len(buckets.Missing), len(buckets.Containers), len(buckets.Errors))

	writer := &report.Writer{Dir: *reportsDir, Now: now}
	statusReport := report.StatusReport(buckets, cfg.NetworkView, *dryRun, now)
	fmt.Println(statusReport)
	path, err := writer.WriteStatusReport(statusReport, *dryRun)
	if err != nil {
		log.Fatalf("Error writing status report: %s", err)
	}
	logger.Log("Status report written to %s", path)

	var outcomes []*sync.CreationOutcome
	if *createMissing {
		missing := buckets.MissingRecords()
		analysis := sync.AnalyzeOverlaps(missing, logger)
		ordered := sync.Schedule(missing, analysis)
		materializer := &sync.Materializer{IPAM: client, Logger: logger}
		outcomes = materializer.MaterializeMissing(ordered, analysis, cfg.NetworkView, *dryRun)

		creationReport := report.CreationReport(outcomes, analysis, *dryRun)
		fmt.Println(creationReport)
		csvPaths, err := writer.WriteCreationCSVs(outcomes)
		if err != nil {
			log.Fatalf("Error writing creation CSVs: %s", err)
		}
		for _, p := range csvPaths {
			logger.Log("Wrote %s", p)
		}
	}

	summary := report.MarkdownSummary(buckets, outcomes, cfg.NetworkView, *dryRun, now)
	path, err = writer.WriteMarkdownSummary(summary, *dryRun)
	if err != nil {
		log.Fatalf("Error writing summary: %s", err)
	}
	logger.Log("Summary written to %s", path)

	if cfg.PostgresConnectionString != "" {
		db, err := sqlx.Connect("postgres", cfg.PostgresConnectionString)
		if err != nil {
			log.Printf("Error connecting to run history database: %s", err)
			return
		}
		defer db.Close()
		modelsManager := &database.SQLModelsManager{DB: db}
		if err := modelsManager.Migrate(); err != nil {
			log.Printf("Error migrating run history database: %s", err)
			return
		}
		runID, err := modelsManager.CreateSyncRun(&database.SyncRun{
			Source:      "properties_file",
			NetworkView: cfg.NetworkView,
			DryRun:      *dryRun,
			StartedAt:   now,
			Matched:     len(buckets.Matched),
			Discrepant:  len(buckets.Discrepant),
			Missing:     len(buckets.Missing),
			Containers:  len(buckets.Containers),
			Errors:      len(buckets.Errors),
		})
		if err != nil {
			log.Printf("Error recording sync run: %s", err)
			return
		}
		if err := modelsManager.RecordOutcomes(runID, outcomes); err != nil {
			log.Printf("Error recording sync outcomes: %s", err)
		}
	}
}
