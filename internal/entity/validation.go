package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
)

// Discrepancy kinds.
const (
	DiscrepancySubtotal         = "subtotal_mismatch"
	DiscrepancyGrandTotal       = "grand_total_mismatch"
	DiscrepancyMissingAmount    = "missing_amount"
	DiscrepancyCurrencyMismatch = "currency_mismatch"
	DiscrepancyMissingTotals    = "missing_totals"
)

type Discrepancy struct {
	Field    string           `json:"field"`
	Kind     string           `json:"kind"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   *decimal.Decimal `json:"actual,omitempty"`
	Delta    *decimal.Decimal `json:"delta,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

type ValidationResult struct {
	ComputedSubtotal decimal.Decimal            `json:"computed_subtotal"`
	ComputedTotal    *decimal.Decimal           `json:"computed_total,omitempty"`
	Discrepancies    []Discrepancy              `json:"discrepancies"`
	Status           constants.ValidationStatus `json:"status"`
	Tolerance        decimal.Decimal            `json:"tolerance"`
	Currency         string                     `json:"currency,omitempty"`
}

type LedgerEntry struct {
	AccountCode        string          `json:"account_code"`
	CostCenter         string          `json:"cost_center"`
	Project            string          `json:"project,omitempty"`
	Activity           string          `json:"activity,omitempty"`
	ProjectCategory    string          `json:"project_category,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency,omitempty"`
	Description        string          `json:"description"`
	User               string          `json:"user,omitempty"`
	Receiver           string          `json:"receiver,omitempty"`
	ReferenceInvoiceID string          `json:"reference_invoice_id,omitempty"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	Incomplete         bool            `json:"incomplete,omitempty"`
	Unresolved         bool            `json:"unresolved,omitempty"`
}

// Kontering returns the Medius dimension used in the Kon/Proj column.
func (e LedgerEntry) Kontering() string {
	if e.Project != "" {
		return e.Project
	}
	return e.AccountCode
}
