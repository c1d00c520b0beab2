package validate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

// Rounding modes.
const (
	RoundHalfUp   = "half_up"
	RoundHalfEven = "half_even"
)

// DefaultTolerance is the largest per-figure difference still accepted.
var DefaultTolerance = decimal.RequireFromString("0.02")

type Options struct {
	Tolerance decimal.Decimal
	Decimals  int32
	Rounding  string
}

func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance, Decimals: 2, Rounding: RoundHalfUp}
}

// Validator reconciles item sums against the figures printed on the invoice.
type Validator struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Tolerance.IsNegative() {
		opts.Tolerance = decimal.Zero
	}
	if opts.Rounding != RoundHalfEven {
		opts.Rounding = RoundHalfUp
	}
	return &Validator{opts: opts, logger: logger}
}

func (v *Validator) round(d decimal.Decimal) decimal.Decimal {
	if v.opts.Rounding == RoundHalfEven {
		return d.RoundBank(v.opts.Decimals)
	}
	return d.Round(v.opts.Decimals)
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

// Validate sums the line totals (unresolved items included) and compares the
// sum with the stated subtotal and, with tax added, the stated grand total.
func (v *Validator) Validate(items []entity.ResolvedLineItem, totals *entity.InvoiceTotals) entity.ValidationResult {
	res := entity.ValidationResult{
		ComputedSubtotal: decimal.Zero,
		Discrepancies:    []entity.Discrepancy{},
		Status:           constants.ValidationOK,
		Tolerance:        v.opts.Tolerance,
	}

	currencies := map[string]bool{}
	for i, it := range items {
		c := it.Candidate
		if cur := c.Currency(); cur != "" {
			currencies[cur] = true
		}
		if c.LineTotal == nil {
			res.Discrepancies = append(res.Discrepancies, entity.Discrepancy{
				Field:  fmt.Sprintf("items[%d].line_total", i),
				Kind:   entity.DiscrepancyMissingAmount,
				Detail: c.Description,
			})
			continue
		}
		res.ComputedSubtotal = res.ComputedSubtotal.Add(c.LineTotal.Value)
	}

	if totals != nil && totals.Currency != "" {
		currencies[totals.Currency] = true
		res.Currency = totals.Currency
	}
	if len(currencies) > 1 {
		res.Discrepancies = append(res.Discrepancies, entity.Discrepancy{
			Field:  "currency",
			Kind:   entity.DiscrepancyCurrencyMismatch,
			Detail: strings.Join(sortedKeys(currencies), ", "),
		})
		res.Status = constants.ValidationFailed
	} else if res.Currency == "" {
		for c := range currencies {
			res.Currency = c
		}
	}

	if totals == nil {
		res.Discrepancies = append(res.Discrepancies, entity.Discrepancy{
			Field: "totals",
			Kind:  entity.DiscrepancyMissingTotals,
		})
		res.Status = constants.ValidationFailed
		v.log(res)
		return res
	}

	if totals.Subtotal != nil {
		v.compare(&res, "subtotal", entity.DiscrepancySubtotal, *totals.Subtotal, res.ComputedSubtotal)
	}
	tax := decimal.Zero
	if totals.Tax != nil {
		tax = *totals.Tax
	}
	res.ComputedTotal = ptr(res.ComputedSubtotal.Add(tax))
	if totals.GrandTotal != nil {
		v.compare(&res, "grand_total", entity.DiscrepancyGrandTotal, *totals.GrandTotal, *res.ComputedTotal)
	}

	v.log(res)
	return res
}

// compare records a discrepancy when the rounded figures differ and degrades
// the status according to the tolerance.
func (v *Validator) compare(res *entity.ValidationResult, field, kind string, stated, computed decimal.Decimal) {
	expected := v.round(stated)
	actual := v.round(computed)
	delta := expected.Sub(actual)
	if delta.IsZero() {
		return
	}
	res.Discrepancies = append(res.Discrepancies, entity.Discrepancy{
		Field:    field,
		Kind:     kind,
		Expected: ptr(expected),
		Actual:   ptr(actual),
		Delta:    ptr(delta),
	})
	status := constants.ValidationWithinTolerance
	if delta.Abs().GreaterThan(v.opts.Tolerance) {
		status = constants.ValidationFailed
	}
	res.Status = res.Status.Worse(status)
}

func (v *Validator) log(res entity.ValidationResult) {
	attrs := []any{
		"status", res.Status,
		"computed_subtotal", res.ComputedSubtotal.StringFixed(v.opts.Decimals),
		"tolerance", res.Tolerance.String(),
		"discrepancies", len(res.Discrepancies),
	}
	if res.Status == constants.ValidationFailed {
		v.logger.Warn("validate.failed", attrs...)
		return
	}
	v.logger.Info("validate.done", attrs...)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Diagnostics turns a failed or tolerated result into run diagnostics.
func Diagnostics(res entity.ValidationResult) []entity.Diagnostic {
	var out []entity.Diagnostic
	for _, d := range res.Discrepancies {
		sev := constants.SeverityWarning
		if res.Status == constants.ValidationFailed && d.Kind != entity.DiscrepancyMissingAmount {
			sev = constants.SeverityError
		}
		msg := d.Field + ": " + d.Kind
		if d.Delta != nil {
			msg = fmt.Sprintf("%s: stated %s, computed %s, delta %s", d.Field, d.Expected, d.Actual, d.Delta)
		} else if d.Detail != "" {
			msg += " (" + d.Detail + ")"
		}
		out = append(out, entity.Diagnostic{
			Stage:    constants.RunStateValidating,
			Kind:     constants.KindReconciliationFailed,
			Severity: sev,
			Message:  msg,
		})
	}
	return out
}
