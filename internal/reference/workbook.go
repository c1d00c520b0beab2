package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
)

// Sheet names in the reference workbook.
const (
	SheetUsers    = "Power BI Users"
	SheetProjects = "Project Settings"
	SheetProducts = "Products"
)

var (
	userColumns = map[string][]string{
		"name":        {"namn", "name", "användare", "user"},
		"rg":          {"rg"},
		"cost_center": {"kostnadsställe", "cost center", "costcenter"},
		"special":     {"specialhantering", "special"},
	}
	projectColumns = map[string][]string{
		"id":       {"projektid", "project id", "projectid"},
		"kon_proj": {"kon/proj", "konproj"},
		"activity": {"aktivitet", "activity"},
		"category": {"projkat", "project category"},
		"receiver": {"mottagare", "receiver"},
		"kind":     {"typ", "type"},
	}
	productColumns = map[string][]string{
		"key":         {"produkt", "product", "licens", "license"},
		"category":    {"kategori", "category"},
		"project":     {"projektid", "project id", "projectid"},
		"cost_center": {"rg", "kostnadsställe", "cost center"},
	}
)

// Workbook is the outcome of loading the reference workbook.
type Workbook struct {
	Tables   Tables
	Warnings []string
}

// LoadWorkbook reads users, project settings and the optional products sheet.
// Built-in products are kept unless the workbook overrides them.
func LoadWorkbook(path string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("REFERENCE_NOT_FOUND", path, common.ErrNotFound)
		}
		return nil, fmt.Errorf("stat reference workbook: %w", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, common.WrapError(err, "open reference workbook")
	}
	defer func() { _ = f.Close() }()

	wb := &Workbook{}
	users, err := readSheet(f, SheetUsers, userColumns, []string{"name", "rg"}, wb)
	if err != nil {
		return nil, err
	}
	projects, err := readSheet(f, SheetProjects, projectColumns, []string{"id", "kon_proj", "activity", "category", "receiver"}, wb)
	if err != nil {
		return nil, err
	}

	wb.Tables.Users = NewTable(buildUsers(users, wb))
	wb.Tables.Projects = NewTable(buildProjects(projects))
	wb.Tables.Products = DefaultProducts()

	if idx, _ := f.GetSheetIndex(SheetProducts); idx >= 0 {
		products, err := readSheet(f, SheetProducts, productColumns, []string{"key", "category"}, wb)
		if err != nil {
			return nil, err
		}
		wb.Tables.Products = Merge(wb.Tables.Products, NewTable(buildProducts(products, wb)))
	}

	logger.Info("reference.loaded",
		"path", path,
		"users", wb.Tables.Users.Len(),
		"projects", wb.Tables.Projects.Len(),
		"products", wb.Tables.Products.Len(),
		"warnings", len(wb.Warnings))
	for _, w := range wb.Warnings {
		logger.Warn("reference.warning", "detail", w)
	}
	return wb, nil
}

type row map[string]string

// readSheet maps each data row to logical column names using the header row.
func readSheet(f *excelize.File, sheet string, columns map[string][]string, required []string, wb *Workbook) ([]row, error) {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, common.NewAppError("REFERENCE_SHEET_MISSING", sheet, common.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		wb.Warnings = append(wb.Warnings, fmt.Sprintf("sheet %q is empty", sheet))
		return nil, nil
	}

	pos := map[string]int{}
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		for name, aliases := range columns {
			if _, seen := pos[name]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					pos[name] = i
				}
			}
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := pos[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		wb.Warnings = append(wb.Warnings, fmt.Sprintf("sheet %q lacks columns: %s", sheet, strings.Join(missing, ", ")))
	}

	out := make([]row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		r := row{}
		empty := true
		for name, i := range pos {
			if i < len(cells) {
				v := strings.TrimSpace(cells[i])
				r[name] = v
				if v != "" {
					empty = false
				}
			}
		}
		if !empty {
			out = append(out, r)
		}
	}
	return out, nil
}

func buildUsers(rows []row, wb *Workbook) map[string]User {
	users := make(map[string]User, len(rows))
	for _, r := range rows {
		name := strings.Join(strings.Fields(r["name"]), " ")
		if name == "" {
			continue
		}
		if _, dup := users[name]; dup {
			wb.Warnings = append(wb.Warnings, fmt.Sprintf("duplicate user %q, keeping the first row", name))
			continue
		}
		users[name] = User{Name: name, RG: r["rg"], CostCenter: r["cost_center"], Special: r["special"]}
	}
	return users
}

func buildProjects(rows []row) map[string]Project {
	projects := make(map[string]Project, len(rows))
	for _, r := range rows {
		id := ProjectID(r["id"])
		if id == "" {
			id = ProjectID(r["kon_proj"])
		}
		if id == "" {
			continue
		}
		kind := strings.ToLower(r["kind"])
		projects[id] = Project{
			ID:              id,
			KonProj:         KonProj(id),
			Activity:        r["activity"],
			ProjectCategory: r["category"],
			Receiver:        r["receiver"],
			Automation:      kind == "automation" || (kind == "" && id == AutomationProjectID),
			Service:         kind == "service" || kind == "tjänst",
		}
	}
	return projects
}

func buildProducts(rows []row, wb *Workbook) map[string]Product {
	products := make(map[string]Product, len(rows))
	for _, r := range rows {
		key := strings.Join(strings.Fields(r["key"]), " ")
		if key == "" {
			continue
		}
		cat, ok := constants.Canonicalize(r["category"])
		if !ok {
			wb.Warnings = append(wb.Warnings, fmt.Sprintf("product %q has unknown category %q", key, r["category"]))
		}
		products[key] = Product{
			Key:        key,
			Category:   cat,
			ProjectID:  ProjectID(r["project"]),
			CostCenter: r["cost_center"],
		}
	}
	return products
}
