package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/extract"
	"github.com/joseph-ayodele/invoice-helper/internal/ledger"
	"github.com/joseph-ayodele/invoice-helper/internal/normalize"
	"github.com/joseph-ayodele/invoice-helper/internal/resolve"
	"github.com/joseph-ayodele/invoice-helper/internal/validate"
)

// NewFromConfig builds a Processor with every stage configured from cfg.
func NewFromConfig(cfg *common.Config, ocr Recognizer, sink Sink, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	layout := extract.DefaultLayout()
	layout.DefaultCurrency = cfg.Invoice.DefaultCurrency

	return NewProcessor(logger,
		ocr,
		normalize.New(normalize.Options{Locale: cfg.Invoice.Locale}, logger),
		extract.New(layout, logger),
		resolve.New(resolve.Options{MaxDistance: cfg.Reference.FuzzyMaxDistance}, logger),
		validate.New(validate.Options{
			Tolerance: cfg.Reconcile.Tolerance,
			Decimals:  cfg.Reconcile.Decimals,
			Rounding:  cfg.Reconcile.Rounding,
		}, logger),
		ledger.New(ledger.Options{Approver: cfg.Output.Approver}, logger),
		sink,
	)
}
