package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/export"
	"github.com/joseph-ayodele/invoice-helper/internal/ingest"
	"github.com/joseph-ayodele/invoice-helper/internal/ocr"
	"github.com/joseph-ayodele/invoice-helper/internal/pipeline"
	"github.com/joseph-ayodele/invoice-helper/internal/reference"
	repo "github.com/joseph-ayodele/invoice-helper/internal/repository"
)

const (
	exitOK      = 0
	exitError   = 1
	exitAborted = 3
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	common.LoadDotEnv()
	cfg := common.LoadConfig()

	var (
		pdf       = flag.String("pdf", "", "invoice PDF to process")
		dir       = flag.String("dir", "", "process every invoice PDF under this directory")
		refs      = flag.String("refs", cfg.Reference.WorkbookPath, "reference workbook (users, project settings)")
		out       = flag.String("out", cfg.Output.Dir, "backup output directory")
		override  = flag.Bool("override", false, "generate ledger rows even when reconciliation fails")
		tolerance = flag.String("tolerance", cfg.Reconcile.Tolerance.String(), "reconciliation tolerance")
		locale    = flag.String("locale", cfg.Invoice.Locale, "number locale of the invoice (sv or en)")
	)
	flag.Parse()

	if (*pdf == "") == (*dir == "") {
		printError("Error: exactly one of -pdf and -dir is required\n")
		flag.Usage()
		return exitError
	}
	tol, err := decimal.NewFromString(*tolerance)
	if err != nil {
		printError("Error: invalid -tolerance %q: %v\n", *tolerance, err)
		return exitError
	}
	cfg.Reconcile.Tolerance = tol
	cfg.Invoice.Locale = *locale
	cfg.Output.Dir = *out
	cfg.Reference.WorkbookPath = *refs
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wb, err := reference.LoadWorkbook(cfg.Reference.WorkbookPath, logger)
	if err != nil {
		printError("Error: load reference workbook: %v\n", err)
		return exitError
	}
	for _, w := range wb.Warnings {
		logger.Warn("reference.warning", "detail", w)
	}

	var runs export.RunRecorder
	if cfg.Database.DSN != "" {
		db, err := repo.Open(ctx, cfg.Database, logger)
		if err != nil {
			printError("Error: open run log: %v\n", err)
			return exitError
		}
		defer repo.Close(db, logger)
		runLog := repo.NewRunLogRepository(db, logger)
		if err := runLog.Migrate(ctx); err != nil {
			printError("Error: migrate run log: %v\n", err)
			return exitError
		}
		runs = runLog
	}

	proc := pipeline.NewFromConfig(cfg,
		ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger),
		export.NewService(cfg.Output.Dir, runs, logger),
		logger,
	)

	paths := []string{*pdf}
	if *dir != "" {
		var stats ingest.DirStats
		paths, stats, err = ingest.ScanDirectory(*dir, true)
		if err != nil {
			printError("Error: %v\n", err)
			return exitError
		}
		logger.Info("scan.done", "dir", *dir, "matched", stats.Matched, "failed", stats.Failed)
	}

	code := exitOK
	for _, p := range paths {
		c := processOne(ctx, proc, p, wb.Tables, *override)
		if c > code {
			code = c
		}
	}
	return code
}

func processOne(ctx context.Context, proc *pipeline.Processor, path string, tables reference.Tables, override bool) int {
	res, err := proc.Process(ctx, path, tables, pipeline.Options{Override: override})
	var abort *pipeline.AbortError
	switch {
	case errors.As(err, &abort):
		printError("%s: aborted in %s: %s\n", path, abort.Stage, abort.Reason)
		for _, d := range abort.Record.Diagnostics {
			printError("  [%s] %s: %s\n", d.Severity, d.Kind, d.Message)
		}
		return exitAborted
	case err != nil:
		printError("%s: %v\n", path, err)
		return exitError
	}
	printSummary(path, res)
	return exitOK
}

func printSummary(path string, res *pipeline.Result) {
	v := res.Validation
	fmt.Printf("Invoice:   %s (%s)\n", res.Record.InvoiceID(), path)
	fmt.Printf("Status:    %s\n", v.Status)
	fmt.Printf("Subtotal:  %s %s\n", v.ComputedSubtotal.StringFixed(2), v.Currency)
	for _, d := range v.Discrepancies {
		fmt.Printf("  %s %s", d.Field, d.Kind)
		if d.Delta != nil {
			fmt.Printf(" (delta %s)", d.Delta.StringFixed(2))
		}
		fmt.Println()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\nKon/Proj\tRG\tAktivitet\tProjKat\tNetto\tBeskrivning")
	for _, e := range res.Entries {
		rg := e.CostCenter
		if e.Project != "" {
			rg = ""
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Kontering(), rg, e.Activity, e.ProjectCategory, e.Amount.StringFixed(2), e.Description)
	}
	_ = tw.Flush()

	if c := export.Comment(res.Record.Items); c != "" {
		fmt.Printf("\nKommentar:\n%s\n", c)
	}
	if res.BackupDir != "" {
		fmt.Printf("\nBackup:    %s\n", res.BackupDir)
	}
	if n := len(res.Record.Diagnostics); n > 0 {
		fmt.Printf("Diagnostics: %d (see run.json)\n", n)
	}
}
