// Command gapfill evaluates a batch of site/month pairs from the
// command line and writes the results as CSV reports. Gaps are
// ordinary results: the command exits 0 whether or not every pair
// resolved.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"meterfill/internal/config"
	"meterfill/internal/exporter"
	"meterfill/internal/gapfill"
	"meterfill/internal/infrastructure"
	"meterfill/internal/intensity"
	"meterfill/internal/readings"
	"meterfill/internal/services"
	"meterfill/internal/store"
	"meterfill/pkg/contracts"
	"meterfill/pkg/contracts/domain"
)

type options struct {
	readingsDir   string
	sites         string
	months        string
	fromMonth     string
	toMonth       string
	intensityFile string
	outFile       string
	summaryFile   string
	jsonFile      string
	bom           bool
	workers       int
	dbURL         string
	dbSchema      string
	runTag        string
	logLevel      string
	showVersion   bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gapfill: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.readingsDir, "readings", "data/readings", "directory of CSV/XLSX meter exports")
	flag.StringVar(&opts.sites, "sites", "", "comma-separated site IDs (default: every site in the readings)")
	flag.StringVar(&opts.months, "months", "", "comma-separated target months, e.g. 2025-03,2025-04")
	flag.StringVar(&opts.fromMonth, "from", "", "first target month of an inclusive range")
	flag.StringVar(&opts.toMonth, "to", "", "last target month of an inclusive range")
	flag.StringVar(&opts.intensityFile, "intensity", "", "intensity factor table (YAML); omit to disable the third fallback rule")
	flag.StringVar(&opts.outFile, "out", "", "write per-pair resolutions to this CSV file")
	flag.StringVar(&opts.summaryFile, "summary", "", "write run summary to this CSV file")
	flag.StringVar(&opts.jsonFile, "json", "", "write the full batch result to this JSON file")
	flag.BoolVar(&opts.bom, "bom", false, "prefix CSV output with a UTF-8 BOM for Excel")
	flag.IntVar(&opts.workers, "workers", 8, "concurrent evaluations")
	flag.StringVar(&opts.dbURL, "db-url", "", "Postgres URL; when set the run is persisted")
	flag.StringVar(&opts.dbSchema, "db-schema", "meterfill", "Postgres schema for persisted runs")
	flag.StringVar(&opts.runTag, "run-tag", "", "free-form tag stored with a persisted run")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flag.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flag.Parse()

	if opts.showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return nil
	}

	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{
		Level:  opts.logLevel,
		Output: "stdout",
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	records, stats, err := readings.LoadDirectory(ctx, opts.readingsDir, logger)
	if err != nil {
		return fmt.Errorf("load readings from %s: %w", opts.readingsDir, err)
	}
	if stats.Records == 0 {
		return fmt.Errorf("no consumption records found under %s", opts.readingsDir)
	}

	provider, err := loadProvider(opts.intensityFile, logger)
	if err != nil {
		return err
	}

	recordStore := readings.NewStore()
	recordStore.Replace(readings.NewSnapshot(records))

	var runStore services.RunStore
	if opts.dbURL != "" {
		pg, err := store.Open(ctx, store.Options{
			URL:    opts.dbURL,
			Schema: opts.dbSchema,
			RunTag: opts.runTag,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer pg.Close()
		runStore = pg
	}

	service, err := services.NewGapFillService(services.GapFillServiceOptions{
		Engine:  gapfill.NewEngine(provider, logger),
		Store:   recordStore,
		Runs:    runStore,
		Workers: opts.workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	batch, err := buildBatch(opts)
	if err != nil {
		return err
	}

	result, err := service.ResolveBatch(ctx, batch)
	if err != nil {
		return err
	}

	if opts.outFile != "" {
		if err := exporter.WriteResolutions(opts.outFile, result.Resolutions, exporter.WriteOptions{BOMPrefix: opts.bom}); err != nil {
			return err
		}
	}
	if opts.summaryFile != "" {
		if err := exporter.WriteSummary(opts.summaryFile, result, exporter.WriteOptions{BOMPrefix: opts.bom}); err != nil {
			return err
		}
	}
	if opts.jsonFile != "" {
		if err := exporter.WriteJSON(opts.jsonFile, result); err != nil {
			return err
		}
	}

	printResult(os.Stdout, result, opts.outFile == "" && opts.jsonFile == "")
	return nil
}

func loadProvider(path string, logger *slog.Logger) (gapfill.IntensityProvider, error) {
	if path == "" {
		return gapfill.NopProvider{}, nil
	}
	return intensity.LoadTable(path, logger)
}

func buildBatch(opts options) (domain.BatchRequest, error) {
	batch := domain.BatchRequest{SiteIDs: splitList(opts.sites)}

	for _, raw := range splitList(opts.months) {
		m, err := domain.ParseMonth(raw)
		if err != nil {
			return domain.BatchRequest{}, err
		}
		batch.Months = append(batch.Months, m)
	}
	if opts.fromMonth != "" {
		m, err := domain.ParseMonth(opts.fromMonth)
		if err != nil {
			return domain.BatchRequest{}, err
		}
		batch.FromMonth = m
	}
	if opts.toMonth != "" {
		m, err := domain.ParseMonth(opts.toMonth)
		if err != nil {
			return domain.BatchRequest{}, err
		}
		batch.ToMonth = m
	}

	if err := batch.Validate(); err != nil {
		return domain.BatchRequest{}, err
	}
	return batch, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func printResult(w io.Writer, result domain.BatchResult, verbose bool) {
	if verbose {
		for _, res := range result.Resolutions {
			if res.IsResolved() {
				fmt.Fprintf(w, "%s %s = %.2f (%s)\n", res.SiteID, res.TargetMonth, res.Value, res.Rule)
			} else {
				fmt.Fprintf(w, "%s %s = GAP: %s\n", res.SiteID, res.TargetMonth, res.Explanation)
			}
		}
	}
	fmt.Fprintf(w, "run %s: %s evaluated, %s resolved, %s gaps across %s site(s) in %s\n",
		result.RunID,
		humanize.Comma(int64(result.Summary.Total)),
		humanize.Comma(int64(result.Summary.Resolved)),
		humanize.Comma(int64(result.Summary.Gaps)),
		humanize.Comma(int64(result.Summary.SiteCount)),
		result.Duration,
	)
}
