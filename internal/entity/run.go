package entity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-helper/constants"
)

type Diagnostic struct {
	Stage    constants.RunState       `json:"stage"`
	Kind     constants.DiagnosticKind `json:"kind"`
	Severity constants.Severity       `json:"severity"`
	Message  string                   `json:"message"`
	Lines    []int                    `json:"lines,omitempty"`
}

// RunRecord collects everything one pipeline run produced. It is threaded
// through the stages and handed to the export sink once the run ends.
type RunRecord struct {
	ID          string              `json:"id"`
	SourcePath  string              `json:"source_path"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	State       constants.RunState  `json:"state"`
	AbortStage  constants.RunState  `json:"abort_stage,omitempty"`
	AbortReason string              `json:"abort_reason,omitempty"`
	Override    bool                `json:"override"`
	Document    *RawOcrDocument     `json:"document,omitempty"`
	Lines       []NormalizedLine    `json:"lines,omitempty"`
	Header      InvoiceHeader       `json:"header"`
	Candidates  []LineItemCandidate `json:"candidates,omitempty"`
	Totals      *InvoiceTotals      `json:"totals,omitempty"`
	Items       []ResolvedLineItem  `json:"items,omitempty"`
	Validation  *ValidationResult   `json:"validation,omitempty"`
	Entries     []LedgerEntry       `json:"entries,omitempty"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
}

func (r *RunRecord) AddDiagnostic(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// InvoiceID is the invoice number, or the source file name when the header
// carried none.
func (r *RunRecord) InvoiceID() string {
	if r.Header.InvoiceNumber != "" {
		return r.Header.InvoiceNumber
	}
	base := filepath.Base(r.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasKind reports whether any diagnostic of kind k was recorded.
func (r *RunRecord) HasKind(k constants.DiagnosticKind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// RunSummary is the row persisted in the run log.
type RunSummary struct {
	ID               string    `json:"id"`
	SourcePath       string    `json:"source_path"`
	InvoiceNumber    string    `json:"invoice_number"`
	State            string    `json:"state"`
	Status           string    `json:"status"`
	ComputedSubtotal string    `json:"computed_subtotal"`
	EntryCount       int       `json:"entry_count"`
	DiagnosticCount  int       `json:"diagnostic_count"`
	BackupDir        string    `json:"backup_dir"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}
