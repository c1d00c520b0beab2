package ledger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

type Options struct {
	// Approver fills the "Godkänt av" column.
	Approver string
}

type Request struct {
	Items      []entity.ResolvedLineItem
	Validation entity.ValidationResult
	InvoiceID  string
	// Override lets a failed reconciliation through.
	Override bool
}

// Generator turns resolved items into Medius ledger rows, one per item.
type Generator struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{opts: opts, logger: logger}
}

// Blocked reports whether generation is refused for the given status.
func Blocked(status constants.ValidationStatus, override bool) bool {
	return status == constants.ValidationFailed && !override
}

// Generate returns one entry per item. It refuses to run on a failed
// reconciliation without override, and checks that the entry amounts add up
// to the computed subtotal.
func (g *Generator) Generate(req Request) ([]entity.LedgerEntry, error) {
	status := req.Validation.Status
	if Blocked(status, req.Override) {
		g.logger.Warn("ledger.blocked", "status", status, "invoice", req.InvoiceID)
		return nil, common.NewAppError("GENERATION_BLOCKED",
			fmt.Sprintf("reconciliation %s, %d discrepancies", status, len(req.Validation.Discrepancies)),
			common.ErrGenerationBlocked)
	}
	if status == constants.ValidationFailed {
		g.logger.Warn("ledger.override", "invoice", req.InvoiceID)
	}

	entries := make([]entity.LedgerEntry, 0, len(req.Items))
	sum := decimal.Zero
	for _, it := range req.Items {
		e := g.entry(it, req)
		sum = sum.Add(e.Amount)
		entries = append(entries, e)
	}

	if !sum.Equal(req.Validation.ComputedSubtotal) {
		return nil, common.NewAppError("LEDGER_INVARIANT",
			fmt.Sprintf("entries sum to %s, computed subtotal is %s", sum, req.Validation.ComputedSubtotal),
			common.ErrInvariant)
	}
	g.logger.Info("ledger.generated", "invoice", req.InvoiceID, "entries", len(entries), "sum", sum.String())
	return entries, nil
}

func (g *Generator) entry(it entity.ResolvedLineItem, req Request) entity.LedgerEntry {
	c, a := it.Candidate, it.Attribution
	category := constants.Category(a.Category)
	if category == "" {
		category = constants.Other
	}

	e := entity.LedgerEntry{
		AccountCode:        constants.AccountCode(category),
		CostCenter:         a.CostCenter,
		Project:            a.Project,
		Activity:           a.Activity,
		ProjectCategory:    a.ProjectCategory,
		Currency:           req.Validation.Currency,
		Description:        strings.TrimSpace(c.Description + " " + c.Period),
		User:               a.User,
		Receiver:           a.Receiver,
		ReferenceInvoiceID: req.InvoiceID,
		ApprovedBy:         g.opts.Approver,
		Unresolved:         !it.Resolved,
	}
	if c.LineTotal == nil {
		e.Amount = decimal.Zero
		e.Incomplete = true
		return e
	}
	e.Amount = c.LineTotal.Value
	if c.LineTotal.Currency != "" {
		e.Currency = c.LineTotal.Currency
	}
	return e
}
