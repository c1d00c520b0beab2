package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func items() []entity.ResolvedLineItem {
	mk := func(desc, total string, attr entity.Attribution, resolved bool) entity.ResolvedLineItem {
		return entity.ResolvedLineItem{
			Candidate:   entity.LineItemCandidate{Description: desc, LineTotal: entity.NewAmount(dec(total), "")},
			Attribution: attr,
			Resolved:    resolved,
		}
	}
	return []entity.ResolvedLineItem{
		mk("A", "20.00", entity.Attribution{CostCenter: "4410", Activity: "738", Category: string(constants.SoftwareLicense)}, true),
		mk("B", "5.00", entity.Attribution{Project: "P.20257407", Activity: "738", ProjectCategory: "5420", Category: string(constants.CloudService)}, true),
		mk("C", "3.00", entity.Attribution{CostCenter: constants.UnresolvedMarker, Project: constants.UnresolvedMarker}, false),
	}
}

func validation(status constants.ValidationStatus) entity.ValidationResult {
	return entity.ValidationResult{ComputedSubtotal: dec("28.00"), Status: status, Currency: "SEK"}
}

func TestGenerate(t *testing.T) {
	g := New(Options{Approver: "John Munthe"}, nil)
	entries, err := g.Generate(Request{Items: items(), Validation: validation(constants.ValidationOK), InvoiceID: "4711"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	want := []struct {
		amount, account, kontering string
		unresolved                 bool
	}{
		{"20.00", "5420", "5420", false},
		{"5.00", "5421", "P.20257407", false},
		{"3.00", "6990", constants.UnresolvedMarker, true},
	}
	for i, w := range want {
		e := entries[i]
		if !e.Amount.Equal(dec(w.amount)) || e.AccountCode != w.account || e.Kontering() != w.kontering || e.Unresolved != w.unresolved {
			t.Errorf("entry %d = %+v", i, e)
		}
		if e.ApprovedBy != "John Munthe" || e.ReferenceInvoiceID != "4711" || e.Currency != "SEK" {
			t.Errorf("entry %d metadata = %+v", i, e)
		}
	}
}

func TestGenerateGuard(t *testing.T) {
	g := New(Options{}, nil)
	statuses := []constants.ValidationStatus{constants.ValidationOK, constants.ValidationWithinTolerance, constants.ValidationFailed}
	for _, status := range statuses {
		for _, override := range []bool{false, true} {
			entries, err := g.Generate(Request{Items: items(), Validation: validation(status), Override: override})
			blocked := errors.Is(err, common.ErrGenerationBlocked)
			wantBlocked := status == constants.ValidationFailed && !override
			if blocked != wantBlocked {
				t.Fatalf("status=%s override=%v: blocked=%v (err %v)", status, override, blocked, err)
			}
			if blocked && len(entries) != 0 {
				t.Fatalf("blocked run produced %d entries", len(entries))
			}
			if !blocked && len(entries) != 3 {
				t.Fatalf("status=%s override=%v: %d entries, err %v", status, override, len(entries), err)
			}
		}
	}
}

func TestGenerateMissingAmount(t *testing.T) {
	its := items()
	its[2].Candidate.LineTotal = nil
	v := validation(constants.ValidationOK)
	v.ComputedSubtotal = dec("25.00")

	entries, err := New(Options{}, nil).Generate(Request{Items: its, Validation: v})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !entries[2].Incomplete || !entries[2].Amount.IsZero() {
		t.Fatalf("entry without amount = %+v", entries[2])
	}
}

func TestGenerateSumInvariant(t *testing.T) {
	v := validation(constants.ValidationOK)
	v.ComputedSubtotal = dec("28.01")
	_, err := New(Options{}, nil).Generate(Request{Items: items(), Validation: v})
	if !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("err = %v, want invariant violation", err)
	}
}
