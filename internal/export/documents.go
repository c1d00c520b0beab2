package export

import (
	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

type ocrDocument struct {
	RunID      string                  `json:"run_id"`
	SourcePath string                  `json:"source_path"`
	Method     string                  `json:"method"`
	Warnings   []string                `json:"warnings,omitempty"`
	Pages      []entity.OcrPage        `json:"pages"`
	Lines      []entity.NormalizedLine `json:"lines"`
}

type validationDocument struct {
	RunID      string                    `json:"run_id"`
	Header     entity.InvoiceHeader      `json:"header"`
	Totals     *entity.InvoiceTotals     `json:"totals"`
	Items      []entity.ResolvedLineItem `json:"items"`
	Validation entity.ValidationResult   `json:"validation"`
}

type ledgerDocument struct {
	RunID     string                     `json:"run_id"`
	InvoiceID string                     `json:"invoice_id"`
	Status    constants.ValidationStatus `json:"status"`
	Override  bool                       `json:"override"`
	Entries   []entity.LedgerEntry       `json:"entries"`
}

type runDocument struct {
	Summary     entity.RunSummary   `json:"summary"`
	AbortStage  constants.RunState  `json:"abort_stage,omitempty"`
	AbortReason string              `json:"abort_reason,omitempty"`
	Override    bool                `json:"override"`
	Diagnostics []entity.Diagnostic `json:"diagnostics"`
}

func newOCRDocument(rec *entity.RunRecord) ocrDocument {
	doc := ocrDocument{
		RunID:      rec.ID,
		SourcePath: rec.SourcePath,
		Method:     rec.Document.Method,
		Warnings:   rec.Document.Warnings,
		Pages:      rec.Document.Pages,
		Lines:      rec.Lines,
	}
	if doc.Pages == nil {
		doc.Pages = []entity.OcrPage{}
	}
	if doc.Lines == nil {
		doc.Lines = []entity.NormalizedLine{}
	}
	return doc
}

func newValidationDocument(rec *entity.RunRecord) validationDocument {
	doc := validationDocument{
		RunID:      rec.ID,
		Header:     rec.Header,
		Totals:     rec.Totals,
		Items:      rec.Items,
		Validation: *rec.Validation,
	}
	if doc.Items == nil {
		doc.Items = []entity.ResolvedLineItem{}
	}
	return doc
}

func newLedgerDocument(rec *entity.RunRecord) ledgerDocument {
	doc := ledgerDocument{
		RunID:     rec.ID,
		InvoiceID: rec.InvoiceID(),
		Override:  rec.Override,
		Entries:   rec.Entries,
	}
	if rec.Validation != nil {
		doc.Status = rec.Validation.Status
	}
	if doc.Entries == nil {
		doc.Entries = []entity.LedgerEntry{}
	}
	return doc
}

func newRunDocument(rec *entity.RunRecord, dir string) runDocument {
	doc := runDocument{
		Summary:     Summarize(rec, dir),
		AbortStage:  rec.AbortStage,
		AbortReason: rec.AbortReason,
		Override:    rec.Override,
		Diagnostics: rec.Diagnostics,
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []entity.Diagnostic{}
	}
	return doc
}

// Summarize condenses a run record into its run-log row.
func Summarize(rec *entity.RunRecord, dir string) entity.RunSummary {
	s := entity.RunSummary{
		ID:              rec.ID,
		SourcePath:      rec.SourcePath,
		InvoiceNumber:   rec.Header.InvoiceNumber,
		State:           string(rec.State),
		EntryCount:      len(rec.Entries),
		DiagnosticCount: len(rec.Diagnostics),
		BackupDir:       dir,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
	}
	if rec.Validation != nil {
		s.Status = string(rec.Validation.Status)
		s.ComputedSubtotal = rec.Validation.ComputedSubtotal.String()
	}
	return s
}
