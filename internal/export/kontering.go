package export

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

const konteringSheet = "Kontering"

// KonteringHeaders are the Medius import columns. The two blank columns are
// part of the format.
var KonteringHeaders = []string{"Kon/Proj", "", "RG", "Aktivitet", "ProjKat", "", "Netto", "Godkänt av"}

// KonteringXLSX returns the ledger entries as a Medius import workbook.
func KonteringXLSX(entries []entity.LedgerEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", konteringSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(KonteringHeaders))
	for i, h := range KonteringHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(konteringSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		// project rows are booked on the project alone
		rg := e.CostCenter
		if e.Project != "" {
			rg = ""
		}
		row := []any{
			e.Kontering(),
			"",
			rg,
			e.Activity,
			e.ProjectCategory,
			"",
			e.Amount.Round(2).InexactFloat64(),
			e.ApprovedBy,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(konteringSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(konteringSheet, "A", "A", 14) // kon/proj
	_ = f.SetColWidth(konteringSheet, "C", "E", 10) // rg, aktivitet, projkat
	_ = f.SetColWidth(konteringSheet, "G", "G", 12) // netto
	_ = f.SetColWidth(konteringSheet, "H", "H", 20) // approver

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Comment builds the Medius invoice comment: the users behind every RG booking
// followed by the licenses handed to each project receiver.
func Comment(items []entity.ResolvedLineItem) string {
	type userRG struct{ name, rg string }
	var users []userRG
	seenUser := map[userRG]bool{}

	var receivers []string
	licenses := map[string][]string{}

	for _, it := range items {
		if !it.Resolved {
			continue
		}
		a := it.Attribution
		if a.Project == "" {
			for _, name := range splitUsers(a.User) {
				u := userRG{name: name, rg: a.CostCenter}
				if !seenUser[u] {
					seenUser[u] = true
					users = append(users, u)
				}
			}
			continue
		}
		if a.Receiver == "" {
			continue
		}
		label := a.Product
		if label == "" {
			label = it.Candidate.Description
		}
		if a.User != "" {
			label += " (" + a.User + ")"
		}
		if _, ok := licenses[a.Receiver]; !ok {
			receivers = append(receivers, a.Receiver)
		}
		if !slices.Contains(licenses[a.Receiver], label) {
			licenses[a.Receiver] = append(licenses[a.Receiver], label)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].rg != users[j].rg {
			return users[i].rg < users[j].rg
		}
		return users[i].name < users[j].name
	})

	var parts []string
	if len(users) > 0 {
		parts = append(parts, "Licenser per RG")
		for _, u := range users {
			parts = append(parts, u.name+"\t"+u.rg)
		}
	}
	for _, r := range receivers {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, fmt.Sprintf("Till %s licenser för %s", r, strings.Join(licenses[r], ", ")))
	}
	return strings.Join(parts, "\n")
}

func splitUsers(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
