package extract

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

// LineRole is what the extractor used a normalized line for.
type LineRole string

const (
	RoleHeader       LineRole = "header"
	RoleColumnHeader LineRole = "column_header"
	RoleItem         LineRole = "item"
	RoleContinuation LineRole = "continuation"
	RoleFooter       LineRole = "footer"
	RoleBlank        LineRole = "blank"
	RoleUnassigned   LineRole = "unassigned"
)

// Extraction is the result of one Extract call. Roles has one entry per input
// line. Totals is nil when neither a subtotal nor a grand total was found.
type Extraction struct {
	Header      entity.InvoiceHeader
	Candidates  []entity.LineItemCandidate
	Totals      *entity.InvoiceTotals
	Roles       []LineRole
	Diagnostics []entity.Diagnostic
}

type Extractor struct {
	layout Layout
	logger *slog.Logger
}

func New(layout Layout, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{layout: layout, logger: logger}
}

func diag(kind constants.DiagnosticKind, sev constants.Severity, lines []int, format string, args ...any) entity.Diagnostic {
	return entity.Diagnostic{
		Stage:    constants.RunStateExtracting,
		Kind:     kind,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Lines:    lines,
	}
}

// Extract splits the lines into header, item and footer regions and reads
// line-item candidates and totals from them.
func (e *Extractor) Extract(lines []entity.NormalizedLine) Extraction {
	n := len(lines)
	x := Extraction{Roles: make([]LineRole, n)}
	for i, l := range lines {
		if l.Text == "" {
			x.Roles[i] = RoleBlank
		}
	}

	itemStart := e.findStart(lines, &x)
	footerStart := e.findFooter(lines, itemStart)

	for i := 0; i < itemStart && i < n; i++ {
		if x.Roles[i] == "" {
			x.Roles[i] = RoleHeader
		}
	}
	e.readHeader(lines[:min(itemStart, n)], &x)
	e.readItems(lines, itemStart, footerStart, &x)
	e.readFooter(lines, footerStart, &x)

	if x.Totals == nil {
		x.Diagnostics = append(x.Diagnostics, diag(constants.KindExtractionIncomplete, constants.SeverityWarning, nil,
			"no subtotal or grand total found"))
	}
	e.logger.Debug("extract.done",
		"lines", n,
		"item_start", itemStart,
		"footer_start", footerStart,
		"candidates", len(x.Candidates),
		"totals", x.Totals != nil)
	return x
}

// findStart returns the index of the first item-region line. A column header
// row found by the start anchor gets its role here.
func (e *Extractor) findStart(lines []entity.NormalizedLine, x *Extraction) int {
	if e.layout.StartAnchor != nil {
		for i, l := range lines {
			if l.Text != "" && e.layout.StartAnchor.MatchString(l.Text) {
				x.Roles[i] = RoleColumnHeader
				return i + 1
			}
		}
	}
	x.Diagnostics = append(x.Diagnostics, diag(constants.KindExtractionIncomplete, constants.SeverityWarning, nil,
		"column header row not found, guessing item table start"))
	for i, l := range lines {
		if l.Text == "" || e.layout.isHeaderField(l.Text) || e.layout.footerLabel(l.Text) != footerNone {
			continue
		}
		il := e.layout.parseItemLine(l.Text)
		if il.description != "" && len(il.amounts) >= 2 {
			return i
		}
	}
	return len(lines)
}

func (e *Extractor) findFooter(lines []entity.NormalizedLine, from int) int {
	for i := from; i < len(lines); i++ {
		if lines[i].Text != "" && e.layout.footerLabel(lines[i].Text) != footerNone {
			return i
		}
	}
	return len(lines)
}

func (e *Extractor) readHeader(lines []entity.NormalizedLine, x *Extraction) {
	first := func(re *regexp.Regexp) string {
		for _, l := range lines {
			if m := re.FindStringSubmatch(l.Text); m != nil {
				return m[1]
			}
		}
		return ""
	}
	if e.layout.InvoiceNumber != nil {
		x.Header.InvoiceNumber = first(e.layout.InvoiceNumber)
	}
	if e.layout.InvoiceDate != nil {
		x.Header.InvoiceDate = first(e.layout.InvoiceDate)
	}
	if e.layout.Currency != nil {
		if c := first(e.layout.Currency); c != "" {
			if code, ok := currencyCode(c); ok {
				c = code
			}
			x.Header.Currency = c
		}
	}
}

func (e *Extractor) nextNonBlank(lines []entity.NormalizedLine, i, end int) int {
	for j := i + 1; j < end; j++ {
		if lines[j].Text != "" {
			return j
		}
	}
	return -1
}

func (e *Extractor) readItems(lines []entity.NormalizedLine, start, end int, x *Extraction) {
	cur := -1
	for i := start; i < end; i++ {
		if x.Roles[i] != "" {
			continue
		}
		il := e.layout.parseItemLine(lines[i].Text)

		if len(il.amounts) > 0 {
			c := newCandidate(il, i)
			x.Roles[i] = RoleItem
			if il.description == "" {
				x.Diagnostics = append(x.Diagnostics, diag(constants.KindRecognitionGap, constants.SeverityWarning, []int{i},
					"line item without description: %q", lines[i].Text))
			}
			x.Candidates = append(x.Candidates, c)
			cur = len(x.Candidates) - 1
			continue
		}

		// A text-only line directly above a numbers-only line is a row whose
		// description wrapped onto its own line.
		if j := e.nextNonBlank(lines, i, end); j >= 0 && x.Roles[j] == "" {
			next := e.layout.parseItemLine(lines[j].Text)
			if next.numbersOnly() {
				next.description = lines[i].Text
				if next.period == "" {
					next.period = il.period
				}
				c := newCandidate(next, i)
				c.SourceLines = append(c.SourceLines, j)
				x.Roles[i], x.Roles[j] = RoleItem, RoleItem
				x.Candidates = append(x.Candidates, c)
				cur = len(x.Candidates) - 1
				i = j
				continue
			}
		}

		if cur < 0 {
			x.Roles[i] = RoleUnassigned
			x.Diagnostics = append(x.Diagnostics, diag(constants.KindRecognitionGap, constants.SeverityWarning, []int{i},
				"text before the first line item: %q", lines[i].Text))
			continue
		}
		c := &x.Candidates[cur]
		c.Continuation = append(c.Continuation, lines[i].Text)
		c.SourceLines = append(c.SourceLines, i)
		x.Roles[i] = RoleContinuation
	}
}

func newCandidate(il itemLine, i int) entity.LineItemCandidate {
	c := entity.LineItemCandidate{
		Description:     il.description,
		Period:          il.period,
		SourceLineIndex: i,
		SourceLines:     []int{i},
	}
	fields := []**entity.Amount{&c.Quantity, &c.UnitPrice, &c.LineTotal}
	for k, a := range il.amounts {
		if k == len(fields) {
			break
		}
		*fields[k] = a
	}
	return c
}

func (e *Extractor) readFooter(lines []entity.NormalizedLine, start int, x *Extraction) {
	var t entity.InvoiceTotals
	var found bool
	for i := start; i < len(lines); i++ {
		if x.Roles[i] != "" {
			continue
		}
		x.Roles[i] = RoleFooter
		field := e.layout.footerLabel(lines[i].Text)
		if field == footerNone {
			continue
		}
		amt := e.layout.lastAmount(lines[i].Text)
		if amt == nil {
			// label and amount on separate lines
			if j := e.nextNonBlank(lines, i, len(lines)); j >= 0 && e.layout.parseItemLine(lines[j].Text).numbersOnly() {
				amt = e.layout.lastAmount(lines[j].Text)
				x.Roles[j] = RoleFooter
				i = j
			}
		}
		if amt == nil {
			x.Diagnostics = append(x.Diagnostics, diag(constants.KindRecognitionGap, constants.SeverityWarning, []int{i},
				"footer label without amount: %q", lines[i].Text))
			continue
		}
		v := amt.Value
		switch field {
		case footerSubtotal:
			if t.Subtotal == nil {
				t.Subtotal = &v
				found = true
			}
		case footerTax:
			if t.Tax == nil {
				t.Tax = &v
			}
		case footerTotal:
			if t.GrandTotal == nil {
				t.GrandTotal = &v
				found = true
			}
		}
		if t.Currency == "" {
			t.Currency = amt.Currency
		}
	}
	if !found {
		return
	}
	if t.Currency == "" {
		t.Currency = x.Header.Currency
	}
	if t.Currency == "" {
		t.Currency = e.layout.DefaultCurrency
	}
	x.Totals = &t
}
