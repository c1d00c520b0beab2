package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
	"github.com/joseph-ayodele/invoice-helper/internal/extract"
	"github.com/joseph-ayodele/invoice-helper/internal/ledger"
	"github.com/joseph-ayodele/invoice-helper/internal/normalize"
	"github.com/joseph-ayodele/invoice-helper/internal/reference"
	"github.com/joseph-ayodele/invoice-helper/internal/resolve"
	"github.com/joseph-ayodele/invoice-helper/internal/validate"
)

// Recognizer turns an invoice PDF into OCR text.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (entity.RawOcrDocument, error)
}

// Sink receives the run record when a run ends, done or aborted, and returns
// where it was written.
type Sink interface {
	Export(ctx context.Context, rec *entity.RunRecord) (string, error)
}

type Options struct {
	// Override lets ledger rows be generated for a failed reconciliation.
	Override bool
}

// Result is a completed run.
type Result struct {
	Record     *entity.RunRecord
	Validation entity.ValidationResult
	Entries    []entity.LedgerEntry
	BackupDir  string
}

// AbortError ends a run before ledger rows were produced. Record holds
// everything gathered up to the aborting stage.
type AbortError struct {
	Stage  constants.RunState
	Reason string
	Record *entity.RunRecord
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted in %s: %s", e.Stage, e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Processor runs one invoice through normalize, extract, resolve, validate
// and generate, in that order, synchronously.
type Processor struct {
	Logger     *slog.Logger
	OCR        Recognizer
	Normalizer *normalize.Normalizer
	Extractor  *extract.Extractor
	Resolver   *resolve.Resolver
	Validator  *validate.Validator
	Generator  *ledger.Generator
	Sink       Sink

	now func() time.Time
}

func NewProcessor(
	logger *slog.Logger,
	ocr Recognizer,
	norm *normalize.Normalizer,
	ext *extract.Extractor,
	res *resolve.Resolver,
	val *validate.Validator,
	gen *ledger.Generator,
	sink Sink,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:     logger,
		OCR:        ocr,
		Normalizer: norm,
		Extractor:  ext,
		Resolver:   res,
		Validator:  val,
		Generator:  gen,
		Sink:       sink,
		now:        time.Now,
	}
}

// Process recognizes pdfPath and runs the document through the pipeline.
func (p *Processor) Process(ctx context.Context, pdfPath string, tables reference.Tables, opts Options) (*Result, error) {
	rec := p.newRecord(pdfPath, opts)
	ctx = common.WithInvoicePath(common.WithRunID(ctx, rec.ID), pdfPath)

	if p.OCR == nil {
		return nil, p.abort(ctx, rec, "ocr not configured", common.ErrInternal)
	}
	doc, err := p.OCR.Recognize(ctx, pdfPath)
	if err != nil {
		rec.AddDiagnostic(entity.Diagnostic{
			Stage:    constants.RunStateNormalizing,
			Kind:     constants.KindRecognitionGap,
			Severity: constants.SeverityError,
			Message:  err.Error(),
		})
		return nil, p.abort(ctx, rec, "ocr failed", err)
	}
	return p.run(ctx, rec, doc, tables, opts)
}

// ProcessDocument runs an already recognized document through the pipeline.
func (p *Processor) ProcessDocument(ctx context.Context, doc entity.RawOcrDocument, tables reference.Tables, opts Options) (*Result, error) {
	rec := p.newRecord(doc.SourcePath, opts)
	ctx = common.WithInvoicePath(common.WithRunID(ctx, rec.ID), doc.SourcePath)
	return p.run(ctx, rec, doc, tables, opts)
}

func (p *Processor) newRecord(path string, opts Options) *entity.RunRecord {
	return &entity.RunRecord{
		ID:          uuid.NewString(),
		SourcePath:  path,
		StartedAt:   p.now().UTC(),
		State:       constants.RunStateNormalizing,
		Override:    opts.Override,
		Diagnostics: []entity.Diagnostic{},
	}
}

func (p *Processor) run(ctx context.Context, rec *entity.RunRecord, doc entity.RawOcrDocument, tables reference.Tables, opts Options) (*Result, error) {
	logger := common.LoggerFor(ctx, p.Logger)
	logger.Info("pipeline.start", "override", opts.Override)
	rec.Document = &doc

	// normalizing
	for _, w := range doc.Warnings {
		rec.AddDiagnostic(entity.Diagnostic{
			Stage:    constants.RunStateNormalizing,
			Kind:     constants.KindRecognitionGap,
			Severity: constants.SeverityWarning,
			Message:  w,
		})
	}
	rec.Lines = p.Normalizer.Normalize(doc)
	if nonEmpty(rec.Lines) == 0 {
		return nil, p.abort(ctx, rec, "no text lines recovered", common.ErrRecognitionGap)
	}
	if err := p.advance(ctx, rec, constants.RunStateExtracting); err != nil {
		return nil, err
	}

	// extracting
	x := p.Extractor.Extract(rec.Lines)
	rec.Header = x.Header
	rec.Candidates = x.Candidates
	rec.Totals = x.Totals
	rec.Diagnostics = append(rec.Diagnostics, x.Diagnostics...)
	if len(x.Candidates) == 0 {
		return nil, p.abort(ctx, rec, "no line items found", common.ErrExtractionIncomplete)
	}
	if x.Totals == nil {
		return nil, p.abort(ctx, rec, "invoice totals not found", common.ErrExtractionIncomplete)
	}
	if err := p.advance(ctx, rec, constants.RunStateResolving); err != nil {
		return nil, err
	}

	// resolving
	rec.Items = p.Resolver.Resolve(rec.Candidates, tables)
	rec.Diagnostics = append(rec.Diagnostics, resolve.Diagnostics(rec.Items)...)
	if err := p.advance(ctx, rec, constants.RunStateValidating); err != nil {
		return nil, err
	}

	// validating
	vr := p.Validator.Validate(rec.Items, rec.Totals)
	rec.Validation = &vr
	rec.Diagnostics = append(rec.Diagnostics, validate.Diagnostics(vr)...)
	if err := p.advance(ctx, rec, constants.RunStateGenerating); err != nil {
		return nil, err
	}

	// generating
	entries, err := p.Generator.Generate(ledger.Request{
		Items:      rec.Items,
		Validation: vr,
		InvoiceID:  rec.InvoiceID(),
		Override:   opts.Override,
	})
	if err != nil {
		if errors.Is(err, common.ErrGenerationBlocked) {
			rec.AddDiagnostic(entity.Diagnostic{
				Stage:    constants.RunStateGenerating,
				Kind:     constants.KindGenerationBlocked,
				Severity: constants.SeverityError,
				Message:  err.Error(),
			})
			return nil, p.abort(ctx, rec, "reconciliation failed and no override given",
				fmt.Errorf("%w: %w", common.ErrReconciliationFailed, err))
		}
		return nil, p.abort(ctx, rec, "ledger entries do not add up", err)
	}
	rec.Entries = entries
	if err := p.advance(ctx, rec, constants.RunStateDone); err != nil {
		return nil, err
	}

	dir, err := p.export(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("export run %s: %w", rec.ID, err)
	}
	logger.Info("pipeline.done",
		"status", vr.Status,
		"entries", len(entries),
		"diagnostics", len(rec.Diagnostics),
		"backup_dir", dir)
	return &Result{Record: rec, Validation: vr, Entries: entries, BackupDir: dir}, nil
}

// advance moves the record to the next state. A cancelled context aborts the run.
func (p *Processor) advance(ctx context.Context, rec *entity.RunRecord, next constants.RunState) error {
	if err := ctx.Err(); err != nil {
		return p.abort(ctx, rec, "cancelled", err)
	}
	if !canTransition(rec.State, next) {
		return p.abort(ctx, rec, fmt.Sprintf("illegal transition %s -> %s", rec.State, next), common.ErrInvariant)
	}
	common.LoggerFor(ctx, p.Logger).Debug("pipeline.stage.ok", "stage", rec.State, "next", next)
	rec.State = next
	return nil
}

func (p *Processor) abort(ctx context.Context, rec *entity.RunRecord, reason string, cause error) error {
	logger := common.LoggerFor(ctx, p.Logger)
	rec.AbortStage = rec.State
	rec.AbortReason = reason
	rec.State = constants.RunStateAborted
	logger.Warn("pipeline.aborted", "stage", rec.AbortStage, "reason", reason, "err", cause)

	// aborted runs are exported even after the caller cancelled ctx
	if _, err := p.export(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("pipeline.export.failed", "err", err)
	}
	return &AbortError{Stage: rec.AbortStage, Reason: reason, Record: rec, Err: cause}
}

func (p *Processor) export(ctx context.Context, rec *entity.RunRecord) (string, error) {
	rec.FinishedAt = p.now().UTC()
	if p.Sink == nil {
		return "", nil
	}
	return p.Sink.Export(ctx, rec)
}

var transitions = map[constants.RunState]constants.RunState{
	constants.RunStateNormalizing: constants.RunStateExtracting,
	constants.RunStateExtracting:  constants.RunStateResolving,
	constants.RunStateResolving:   constants.RunStateValidating,
	constants.RunStateValidating:  constants.RunStateGenerating,
	constants.RunStateGenerating:  constants.RunStateDone,
}

func canTransition(from, to constants.RunState) bool {
	if from.IsTerminal() {
		return false
	}
	return to == constants.RunStateAborted || transitions[from] == to
}

func nonEmpty(lines []entity.NormalizedLine) int {
	var n int
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			n++
		}
	}
	return n
}
