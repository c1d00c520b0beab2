package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

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

type recordingSink struct {
	records []*entity.RunRecord
	err     error
}

func (s *recordingSink) Export(_ context.Context, rec *entity.RunRecord) (string, error) {
	s.records = append(s.records, rec)
	if s.err != nil {
		return "", s.err
	}
	return "/backups/" + rec.ID, nil
}

type fakeOCR struct {
	doc entity.RawOcrDocument
	err error
}

func (f fakeOCR) Recognize(context.Context, string) (entity.RawOcrDocument, error) {
	return f.doc, f.err
}

func newTestProcessor(tolerance string, ocr Recognizer, sink Sink) *Processor {
	vopts := validate.DefaultOptions()
	if tolerance != "" {
		vopts.Tolerance = decimal.RequireFromString(tolerance)
	}
	return NewProcessor(nil,
		ocr,
		normalize.New(normalize.Options{Locale: "sv"}, nil),
		extract.New(extract.DefaultLayout(), nil),
		resolve.New(resolve.Options{MaxDistance: 3}, nil),
		validate.New(vopts, nil),
		ledger.New(ledger.Options{Approver: "Eva Ekonom"}, nil),
		sink,
	)
}

func invoice(subtotal string) entity.RawOcrDocument {
	return entity.DocumentFromText("faktura.pdf", []string{
		"Atea Sverige AB",
		"Fakturanr: 1001",
		"Valuta: SEK",
		"Artikel Antal Enhet À-pris Belopp",
		"MS Teams EEA 2 ST 10.00 20.00",
		"MS Copilot for MS 365 1 ST 5.00 5.00",
		"MS Teams Rooms Pro 3 ST 1.00 3.00",
		"Delsumma " + subtotal,
	})
}

func TestProcessDocumentReconciles(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor("", nil, sink)

	res, err := p.ProcessDocument(context.Background(), invoice("28.00"), reference.DefaultTables(), Options{})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.Validation.Status != constants.ValidationOK {
		t.Fatalf("status = %s", res.Validation.Status)
	}
	if !res.Validation.ComputedSubtotal.Equal(decimal.RequireFromString("28")) {
		t.Fatalf("computed subtotal = %s", res.Validation.ComputedSubtotal)
	}
	want := []string{"20", "5", "3"}
	if len(res.Entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(res.Entries), len(want))
	}
	for i, w := range want {
		e := res.Entries[i]
		if !e.Amount.Equal(decimal.RequireFromString(w)) {
			t.Errorf("entry %d amount = %s, want %s", i, e.Amount, w)
		}
		if e.ReferenceInvoiceID != "1001" || e.ApprovedBy != "Eva Ekonom" || e.Currency != "SEK" {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
	if res.Entries[2].Project != reference.KonProj(reference.TeamsRoomsProjectID) {
		t.Errorf("teams rooms project = %q", res.Entries[2].Project)
	}

	rec := res.Record
	if rec.State != constants.RunStateDone || rec.ID == "" || rec.FinishedAt.IsZero() {
		t.Fatalf("record = %+v", rec)
	}
	if len(sink.records) != 1 || sink.records[0] != rec {
		t.Fatalf("sink got %d records", len(sink.records))
	}
	if res.BackupDir != "/backups/"+rec.ID {
		t.Fatalf("backup dir = %q", res.BackupDir)
	}
}

func TestProcessDocumentWithinTolerance(t *testing.T) {
	p := newTestProcessor("0.10", nil, nil)
	res, err := p.ProcessDocument(context.Background(), invoice("28.05"), reference.DefaultTables(), Options{})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.Validation.Status != constants.ValidationWithinTolerance {
		t.Fatalf("status = %s", res.Validation.Status)
	}
	if len(res.Validation.Discrepancies) != 1 || !res.Validation.Discrepancies[0].Delta.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("discrepancies = %+v", res.Validation.Discrepancies)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("got %d entries", len(res.Entries))
	}
}

func TestProcessDocumentBlocked(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor("", nil, sink)

	res, err := p.ProcessDocument(context.Background(), invoice("40.00"), reference.DefaultTables(), Options{})
	if res != nil {
		t.Fatalf("expected no result, got %d entries", len(res.Entries))
	}
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("err = %v, want AbortError", err)
	}
	if !errors.Is(err, common.ErrGenerationBlocked) || !errors.Is(err, common.ErrReconciliationFailed) {
		t.Fatalf("err = %v, want ErrGenerationBlocked and ErrReconciliationFailed", err)
	}
	rec := abort.Record
	if abort.Stage != constants.RunStateGenerating || rec.State != constants.RunStateAborted {
		t.Fatalf("stage = %s, state = %s", abort.Stage, rec.State)
	}
	if len(rec.Entries) != 0 {
		t.Fatalf("aborted run has %d entries", len(rec.Entries))
	}
	if !rec.HasKind(constants.KindReconciliationFailed) || !rec.HasKind(constants.KindGenerationBlocked) {
		t.Fatalf("diagnostics = %+v", rec.Diagnostics)
	}
	if rec.Validation == nil || !rec.Validation.Discrepancies[0].Delta.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("validation = %+v", rec.Validation)
	}
	if len(sink.records) != 1 || sink.records[0].State != constants.RunStateAborted {
		t.Fatal("aborted run was not exported")
	}
}

func TestProcessDocumentOverride(t *testing.T) {
	p := newTestProcessor("", nil, nil)
	res, err := p.ProcessDocument(context.Background(), invoice("40.00"), reference.DefaultTables(), Options{Override: true})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.Validation.Status != constants.ValidationFailed || len(res.Entries) != 3 || !res.Record.Override {
		t.Fatalf("status = %s, entries = %d", res.Validation.Status, len(res.Entries))
	}
}

func TestProcessDocumentAborts(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		stage constants.RunState
		cause error
	}{
		{
			name:  "no text",
			lines: []string{"", "   ", "|||"},
			stage: constants.RunStateNormalizing,
			cause: common.ErrRecognitionGap,
		},
		{
			name:  "no items",
			lines: []string{"Atea Sverige AB", "Tack för ert köp"},
			stage: constants.RunStateExtracting,
			cause: common.ErrExtractionIncomplete,
		},
		{
			name:  "no totals",
			lines: []string{"Artikel Antal Enhet À-pris Belopp", "MS Teams EEA 2 ST 10.00 20.00"},
			stage: constants.RunStateExtracting,
			cause: common.ErrExtractionIncomplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			p := newTestProcessor("", nil, sink)
			_, err := p.ProcessDocument(context.Background(), entity.DocumentFromText("x.pdf", tt.lines), reference.DefaultTables(), Options{})
			var abort *AbortError
			if !errors.As(err, &abort) {
				t.Fatalf("err = %v, want AbortError", err)
			}
			if abort.Stage != tt.stage || !errors.Is(err, tt.cause) {
				t.Fatalf("abort = %+v", abort)
			}
			if len(sink.records) != 1 {
				t.Fatal("aborted run was not exported")
			}
		})
	}
}

func TestProcessRecognizes(t *testing.T) {
	doc := invoice("28.00")
	doc.Warnings = []string{"page 2: low confidence"}
	p := newTestProcessor("", fakeOCR{doc: doc}, nil)

	res, err := p.Process(context.Background(), "faktura.pdf", reference.DefaultTables(), Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Record.HasKind(constants.KindRecognitionGap) {
		t.Fatal("ocr warning not carried into diagnostics")
	}
}

func TestProcessOCRFailure(t *testing.T) {
	sink := &recordingSink{}
	boom := errors.New("pdftoppm: exit status 1")
	p := newTestProcessor("", fakeOCR{err: boom}, sink)

	_, err := p.Process(context.Background(), "broken.pdf", reference.DefaultTables(), Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].SourcePath != "broken.pdf" {
		t.Fatal("failed run was not exported")
	}
}

func TestProcessCancelled(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor("", nil, sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessDocument(ctx, invoice("28.00"), reference.DefaultTables(), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatal("cancelled run was not exported")
	}
}

func TestExportFailure(t *testing.T) {
	p := newTestProcessor("", nil, &recordingSink{err: errors.New("disk full")})
	if _, err := p.ProcessDocument(context.Background(), invoice("28.00"), reference.DefaultTables(), Options{}); err == nil {
		t.Fatal("expected export error")
	}
}

func TestCanTransition(t *testing.T) {
	if !canTransition(constants.RunStateNormalizing, constants.RunStateExtracting) {
		t.Error("normalizing -> extracting refused")
	}
	if canTransition(constants.RunStateNormalizing, constants.RunStateValidating) {
		t.Error("stage skip allowed")
	}
	if !canTransition(constants.RunStateResolving, constants.RunStateAborted) {
		t.Error("abort refused")
	}
	if canTransition(constants.RunStateDone, constants.RunStateAborted) {
		t.Error("left a terminal state")
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Setenv("RECON_TOLERANCE", "0.10")
	t.Setenv("APPROVER", "Eva Ekonom")
	cfg := common.LoadConfig()

	p := NewFromConfig(cfg, nil, nil, nil)
	res, err := p.ProcessDocument(context.Background(), invoice("28.05"), reference.DefaultTables(), Options{})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.Validation.Status != constants.ValidationWithinTolerance || res.Entries[0].ApprovedBy != "Eva Ekonom" {
		t.Fatalf("status = %s, approver = %q", res.Validation.Status, res.Entries[0].ApprovedBy)
	}
}
