package extract

import (
	"regexp"
	"strings"
)

// Layout describes where things sit on one vendor's invoice. Every pattern is
// matched against normalized line text.
type Layout struct {
	// StartAnchor matches the column-header row that opens the item table.
	StartAnchor *regexp.Regexp
	// Footer labels. The first line after the items matching any of them
	// closes the item table. Subtotal is checked before Total.
	Subtotal *regexp.Regexp
	Tax      *regexp.Regexp
	Total    *regexp.Regexp

	InvoiceNumber *regexp.Regexp
	InvoiceDate   *regexp.Regexp
	Currency      *regexp.Regexp

	// Period matches a service period inside an item row. It is removed
	// before the numeric scan and kept on the candidate.
	Period *regexp.Regexp
	// Ignore patterns are removed from item rows before the numeric scan.
	Ignore []*regexp.Regexp
	// UnitTokens are quantity units that may sit inside the numeric cluster.
	UnitTokens []string
	// DefaultCurrency is used for the totals when neither the footer nor the
	// header names a currency.
	DefaultCurrency string
}

// DefaultLayout targets Atea's Swedish license invoices and accepts the
// English labels of the same layout family.
func DefaultLayout() Layout {
	return Layout{
		StartAnchor: regexp.MustCompile(`(?i)\b(antal|qty|quantity|kvantitet)\b.*\b(belopp|summa|amount|total|pris|price)\b`),
		Subtotal:    regexp.MustCompile(`(?i)^(delsumma|summa exkl\.? ?moms|nettobelopp|netto|subtotal|sub-total|net amount)\b`),
		Tax:         regexp.MustCompile(`(?i)^(moms|mervärdesskatt|vat|sales tax|tax)\b`),
		Total:       regexp.MustCompile(`(?i)^(summa att betala|att betala|summa inkl\.? ?moms|totalt|grand total|total|amount due)\b`),

		InvoiceNumber: regexp.MustCompile(`(?i)\b(?:fakturanr|fakturanummer|faktura nr|invoice no|invoice number|invoice #)\.?:?\s*([A-Za-z0-9-]+)`),
		InvoiceDate:   regexp.MustCompile(`(?i)\b(?:fakturadatum|invoice date|datum|date)\.?:?\s*(\d{4}-\d{2}-\d{2}|\d{2}[./]\d{2}[./]\d{4})`),
		Currency:      regexp.MustCompile(`(?i)\b(?:valuta|currency)\.?:?\s*([A-Za-z]{3})\b`),

		Period:     regexp.MustCompile(`\b\d{6}\s*-\s*\d{6}\b`),
		UnitTokens: []string{"st", "pcs", "pc", "ea", "styck", "stk"},
	}
}

func (l Layout) isUnit(tok string) bool {
	for _, u := range l.UnitTokens {
		if strings.EqualFold(tok, u) {
			return true
		}
	}
	return false
}

func (l Layout) isHeaderField(text string) bool {
	for _, re := range []*regexp.Regexp{l.InvoiceNumber, l.InvoiceDate, l.Currency} {
		if re != nil && re.MatchString(text) {
			return true
		}
	}
	return false
}

type footerField int

const (
	footerNone footerField = iota
	footerSubtotal
	footerTax
	footerTotal
)

func (l Layout) footerLabel(text string) footerField {
	switch {
	case l.Subtotal != nil && l.Subtotal.MatchString(text):
		return footerSubtotal
	case l.Tax != nil && l.Tax.MatchString(text):
		return footerTax
	case l.Total != nil && l.Total.MatchString(text):
		return footerTotal
	}
	return footerNone
}
