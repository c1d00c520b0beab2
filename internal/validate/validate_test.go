package validate

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(total, currency string) entity.ResolvedLineItem {
	c := entity.LineItemCandidate{Description: "item " + total}
	if total != "" {
		c.LineTotal = entity.NewAmount(dec(total), currency)
	}
	return entity.ResolvedLineItem{Candidate: c}
}

func exampleItems() []entity.ResolvedLineItem {
	return []entity.ResolvedLineItem{item("20.00", ""), item("5.00", ""), item("3.00", "")}
}

func TestValidateExamples(t *testing.T) {
	tests := []struct {
		name      string
		subtotal  string
		tolerance string
		status    constants.ValidationStatus
		delta     string
	}{
		{"exact", "28.00", "0.02", constants.ValidationOK, ""},
		{"within tolerance", "28.05", "0.10", constants.ValidationWithinTolerance, "0.05"},
		{"failed", "40.00", "0.02", constants.ValidationFailed, "12.00"},
		{"outside tolerance", "28.05", "0.02", constants.ValidationFailed, "0.05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(Options{Tolerance: dec(tt.tolerance), Decimals: 2}, nil)
			res := v.Validate(exampleItems(), &entity.InvoiceTotals{Subtotal: dp(tt.subtotal)})
			if !res.ComputedSubtotal.Equal(dec("28.00")) {
				t.Fatalf("computed subtotal = %s", res.ComputedSubtotal)
			}
			if res.Status != tt.status {
				t.Fatalf("status = %s, want %s (%+v)", res.Status, tt.status, res.Discrepancies)
			}
			if tt.delta == "" {
				if len(res.Discrepancies) != 0 {
					t.Fatalf("unexpected discrepancies: %+v", res.Discrepancies)
				}
				return
			}
			if len(res.Discrepancies) != 1 || !res.Discrepancies[0].Delta.Equal(dec(tt.delta)) {
				t.Fatalf("discrepancies = %+v, want delta %s", res.Discrepancies, tt.delta)
			}
		})
	}
}

func TestValidateGrandTotalWithTax(t *testing.T) {
	v := New(DefaultOptions(), nil)
	res := v.Validate(exampleItems(), &entity.InvoiceTotals{Subtotal: dp("28.00"), Tax: dp("7.00"), GrandTotal: dp("35.00")})
	if res.Status != constants.ValidationOK || !res.ComputedTotal.Equal(dec("35")) {
		t.Fatalf("got %s, computed total %s", res.Status, res.ComputedTotal)
	}

	res = v.Validate(exampleItems(), &entity.InvoiceTotals{GrandTotal: dp("28.00")})
	if res.Status != constants.ValidationOK {
		t.Fatalf("absent tax counts as zero, got %s %+v", res.Status, res.Discrepancies)
	}

	res = v.Validate(exampleItems(), &entity.InvoiceTotals{Subtotal: dp("28.00"), Tax: dp("7.00"), GrandTotal: dp("36.00")})
	if res.Status != constants.ValidationFailed || res.Discrepancies[0].Field != "grand_total" {
		t.Fatalf("got %s %+v", res.Status, res.Discrepancies)
	}
}

func TestValidateRounding(t *testing.T) {
	items := []entity.ResolvedLineItem{item("10.005", "")}
	totals := &entity.InvoiceTotals{Subtotal: dp("10.01")}

	up := New(Options{Decimals: 2, Rounding: RoundHalfUp}, nil).Validate(items, totals)
	if up.Status != constants.ValidationOK {
		t.Fatalf("half_up: %s %+v", up.Status, up.Discrepancies)
	}

	even := New(Options{Decimals: 2, Rounding: RoundHalfEven}, nil).Validate(items, totals)
	if even.Status != constants.ValidationFailed {
		t.Fatalf("half_even: got %s, want failed", even.Status)
	}
	if d := even.Discrepancies[0]; !d.Actual.Equal(dec("10.00")) || !d.Delta.Equal(dec("0.01")) {
		t.Fatalf("half_even discrepancy = %+v", d)
	}
}

func TestValidateMissingAmountAndCurrency(t *testing.T) {
	v := New(DefaultOptions(), nil)

	res := v.Validate([]entity.ResolvedLineItem{item("20.00", ""), item("", "")}, &entity.InvoiceTotals{Subtotal: dp("20.00")})
	if res.Status != constants.ValidationOK {
		t.Fatalf("missing amount alone should not fail: %s", res.Status)
	}
	if len(res.Discrepancies) != 1 || res.Discrepancies[0].Kind != entity.DiscrepancyMissingAmount {
		t.Fatalf("discrepancies = %+v", res.Discrepancies)
	}

	res = v.Validate([]entity.ResolvedLineItem{item("20.00", "SEK"), item("8.00", "EUR")}, &entity.InvoiceTotals{Subtotal: dp("28.00")})
	if res.Status != constants.ValidationFailed || res.Discrepancies[0].Kind != entity.DiscrepancyCurrencyMismatch {
		t.Fatalf("got %s %+v", res.Status, res.Discrepancies)
	}

	res = v.Validate([]entity.ResolvedLineItem{item("28.00", "EUR")}, &entity.InvoiceTotals{Subtotal: dp("28.00"), Currency: "SEK"})
	if res.Status != constants.ValidationFailed {
		t.Fatalf("items vs totals currency: got %s", res.Status)
	}

	res = v.Validate(exampleItems(), nil)
	if res.Status != constants.ValidationFailed {
		t.Fatalf("nil totals: got %s", res.Status)
	}
}

func TestValidateAdditivity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	v := New(DefaultOptions(), nil)
	for round := 0; round < 50; round++ {
		n := rng.Intn(20)
		items := make([]entity.ResolvedLineItem, n)
		want := decimal.Zero
		for i := range items {
			d := decimal.New(rng.Int63n(1_000_000), -2)
			want = want.Add(d)
			items[i] = item(d.String(), "")
		}
		res := v.Validate(items, &entity.InvoiceTotals{Subtotal: &want})
		if !res.ComputedSubtotal.Equal(want) {
			t.Fatalf("computed %s, want %s", res.ComputedSubtotal, want)
		}
		if res.Status != constants.ValidationOK {
			t.Fatalf("status %s for matching subtotal", res.Status)
		}
	}
}

func TestValidateMonotonicInTolerance(t *testing.T) {
	rank := map[constants.ValidationStatus]int{
		constants.ValidationOK:              0,
		constants.ValidationWithinTolerance: 1,
		constants.ValidationFailed:          2,
	}
	tolerances := []string{"0", "0.01", "0.02", "0.05", "0.10", "1", "100"}
	for _, stated := range []string{"28.00", "28.01", "28.05", "27.90", "29.00", "40.00"} {
		totals := &entity.InvoiceTotals{Subtotal: dp(stated), GrandTotal: dp(stated)}
		prev := 3
		for _, tol := range tolerances {
			res := New(Options{Tolerance: dec(tol), Decimals: 2}, nil).Validate(exampleItems(), totals)
			r := rank[res.Status]
			if r > prev {
				t.Fatalf("stated %s: status got worse (%s) when tolerance grew to %s", stated, res.Status, tol)
			}
			prev = r
		}
	}
}

func TestDiagnostics(t *testing.T) {
	res := New(DefaultOptions(), nil).Validate(exampleItems(), &entity.InvoiceTotals{Subtotal: dp("40.00")})
	diags := Diagnostics(res)
	if len(diags) != 1 || diags[0].Kind != constants.KindReconciliationFailed || diags[0].Severity != constants.SeverityError {
		t.Fatalf("diagnostics = %+v", diags)
	}
}
