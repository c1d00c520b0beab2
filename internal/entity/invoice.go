package entity

import (
	"github.com/shopspring/decimal"
)

// Amount is a decimal value with the currency tag found next to it, if any.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency,omitempty"`
}

func NewAmount(v decimal.Decimal, currency string) *Amount {
	return &Amount{Value: v, Currency: currency}
}

func (a *Amount) String() string {
	if a == nil {
		return "<absent>"
	}
	if a.Currency == "" {
		return a.Value.String()
	}
	return a.Value.String() + " " + a.Currency
}

// LineItemCandidate is a line item as read off the page, before attribution.
// Numeric fields are nil when the line did not carry them.
type LineItemCandidate struct {
	Description     string   `json:"description"`
	Continuation    []string `json:"continuation,omitempty"`
	Period          string   `json:"period,omitempty"`
	Quantity        *Amount  `json:"quantity,omitempty"`
	UnitPrice       *Amount  `json:"unit_price,omitempty"`
	LineTotal       *Amount  `json:"line_total,omitempty"`
	SourceLineIndex int      `json:"source_line_index"`
	SourceLines     []int    `json:"source_lines"`
}

// Currency returns the first currency tag found on the candidate's amounts.
func (c LineItemCandidate) Currency() string {
	for _, a := range []*Amount{c.LineTotal, c.UnitPrice, c.Quantity} {
		if a != nil && a.Currency != "" {
			return a.Currency
		}
	}
	return ""
}

type InvoiceHeader struct {
	InvoiceNumber string `json:"invoice_number,omitempty"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// InvoiceTotals holds the footer figures. At least one of Subtotal and
// GrandTotal is set whenever the struct itself is non-nil.
type InvoiceTotals struct {
	Subtotal   *decimal.Decimal `json:"subtotal,omitempty"`
	Tax        *decimal.Decimal `json:"tax,omitempty"`
	GrandTotal *decimal.Decimal `json:"grand_total,omitempty"`
	Currency   string           `json:"currency,omitempty"`
}

type Attribution struct {
	CostCenter      string `json:"cost_center"`
	Project         string `json:"project,omitempty"`
	User            string `json:"user,omitempty"`
	Activity        string `json:"activity,omitempty"`
	ProjectCategory string `json:"project_category,omitempty"`
	Receiver        string `json:"receiver,omitempty"`
	Category        string `json:"category,omitempty"`
	Product         string `json:"product,omitempty"`
}

type ResolvedLineItem struct {
	Candidate   LineItemCandidate `json:"candidate"`
	Attribution Attribution       `json:"attribution"`
	Resolved    bool              `json:"resolved"`
	Reason      string            `json:"reason,omitempty"`
	// Notes are non-fatal findings reported alongside the item.
	Notes []string `json:"notes,omitempty"`
}
