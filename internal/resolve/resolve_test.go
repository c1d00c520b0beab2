package resolve

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
	"github.com/joseph-ayodele/invoice-helper/internal/reference"
)

func testTables() reference.Tables {
	t := reference.DefaultTables()
	t.Users = reference.NewTable(map[string]reference.User{
		"Anna Andersson":   {Name: "Anna Andersson", RG: "4410"},
		"Bertil Berg":      {Name: "Bertil Berg", RG: "4410"},
		"Cecilia Carlsson": {Name: "Cecilia Carlsson", RG: "4420"},
		"Mattias Mattsson": {Name: "Mattias Mattsson", RG: "4430", Special: "Automation"},
	})
	return t
}

func TestProductKey(t *testing.T) {
	tests := map[string]string{
		"CSP -Power BI Pro (cycle)":              "Power BI Pro",
		"CSP -MS 365 E3 EEA (no Teams) (Cycle)":  "MS 365 E3 EEA (no Teams)",
		"CSP - Power Automate prem. (Corr)":      "Power Automate prem.",
		"MS Teams EEA":                           "MS Teams EEA",
		"  CSP -MS   Copilot for MS 365 (Corr) ": "MS Copilot for MS 365",
	}
	for in, want := range tests {
		if got := ProductKey(in); got != want {
			t.Errorf("ProductKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	r := New(Options{MaxDistance: 3}, nil)
	tests := []struct {
		name       string
		cand       entity.LineItemCandidate
		resolved   bool
		costCenter string
		project    string
		activity   string
		user       string
		reason     string
	}{
		{
			name:     "project product",
			cand:     entity.LineItemCandidate{Description: "CSP -MS Teams EEA (Cycle)"},
			resolved: true,
			project:  "P.20257407",
			activity: "738",
		},
		{
			name:       "rg product with one user",
			cand:       entity.LineItemCandidate{Description: "CSP -Power BI Pro (cycle)", Continuation: []string{"Anna Andersson"}},
			resolved:   true,
			costCenter: "4410",
			activity:   "738",
			user:       "Anna Andersson",
		},
		{
			name:       "users sharing an rg",
			cand:       entity.LineItemCandidate{Description: "CSP -Power BI Pro (cycle)", Continuation: []string{"Anna Andersson", "bertil berg"}},
			resolved:   true,
			costCenter: "4410",
			user:       "Anna Andersson, Bertil Berg",
			activity:   "738",
		},
		{
			name:     "automation user moves to project",
			cand:     entity.LineItemCandidate{Description: "CSP -Power BI Pro (cycle)", Continuation: []string{"Mattias Mattson"}},
			resolved: true,
			project:  "P.20257601",
			activity: "050",
			user:     "Mattias Mattsson",
		},
		{
			name:   "users in two rgs",
			cand:   entity.LineItemCandidate{Description: "CSP -Power BI Pro (cycle)", Continuation: []string{"Anna Andersson", "Cecilia Carlsson"}},
			reason: "several RGs",
		},
		{
			name:   "no user for rg product",
			cand:   entity.LineItemCandidate{Description: "CSP -Power BI Pro (cycle)"},
			reason: "no user",
		},
		{
			name:   "unknown product",
			cand:   entity.LineItemCandidate{Description: "Adobe Acrobat Pro"},
			reason: "no match",
		},
		{
			name:     "fuzzy product",
			cand:     entity.LineItemCandidate{Description: "Power Automate with att RPA plam"},
			resolved: true,
			project:  "P.20257601",
			activity: "050",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve([]entity.LineItemCandidate{tt.cand}, testTables())
			if len(got) != 1 {
				t.Fatalf("got %d items", len(got))
			}
			it := got[0]
			if it.Resolved != tt.resolved {
				t.Fatalf("resolved = %v (%s), want %v", it.Resolved, it.Reason, tt.resolved)
			}
			if !tt.resolved {
				if it.Attribution.CostCenter != constants.UnresolvedMarker || it.Attribution.Project != constants.UnresolvedMarker {
					t.Fatalf("unresolved item lacks markers: %+v", it.Attribution)
				}
				if !strings.Contains(it.Reason, tt.reason) {
					t.Fatalf("reason = %q, want it to mention %q", it.Reason, tt.reason)
				}
				return
			}
			a := it.Attribution
			if a.CostCenter != tt.costCenter || a.Project != tt.project || a.Activity != tt.activity || a.User != tt.user {
				t.Fatalf("attribution = %+v", a)
			}
		})
	}
}

func TestResolveAmbiguousUser(t *testing.T) {
	tables := testTables()
	tables.Users = reference.NewTable(map[string]reference.User{
		"Jan Svensson": {Name: "Jan Svensson", RG: "1"},
		"Jon Svensson": {Name: "Jon Svensson", RG: "2"},
	})
	got := New(Options{MaxDistance: 3}, nil).Resolve([]entity.LineItemCandidate{
		{Description: "Power BI Pro", Continuation: []string{"Jxn Svensson"}},
	}, tables)
	if got[0].Resolved || !strings.Contains(got[0].Reason, "ambiguous") {
		t.Fatalf("got %+v", got[0])
	}
	diags := Diagnostics(got)
	if len(diags) != 1 || diags[0].Kind != constants.KindResolutionAmbiguous {
		t.Fatalf("diagnostics = %+v", diags)
	}
}

func TestResolveTotality(t *testing.T) {
	r := New(Options{MaxDistance: 3}, nil)
	descs := []string{"", "Power BI Pro", "???", "MS Teams EEA", "x", "Power BI Pro", "MS Teams Rooms Pro"}
	for n := 0; n <= len(descs); n++ {
		cands := make([]entity.LineItemCandidate, n)
		for i := range cands {
			cands[i] = entity.LineItemCandidate{Description: descs[i], SourceLineIndex: i}
		}
		got := r.Resolve(cands, testTables())
		if len(got) != n {
			t.Fatalf("Resolve(%d candidates) returned %d items", n, len(got))
		}
		for i := range got {
			if got[i].Candidate.SourceLineIndex != i {
				t.Fatalf("item %d out of order", i)
			}
		}
	}
}

func TestResolveRGProductWithoutUsers(t *testing.T) {
	r := New(Options{MaxDistance: 3}, nil)
	line := func(qty int64) entity.LineItemCandidate {
		return entity.LineItemCandidate{
			Description: "CSP -Power BI Pro (cycle)",
			Quantity:    entity.NewAmount(decimal.NewFromInt(qty), ""),
			SourceLines: []int{7},
		}
	}

	// testTables has three RG users (4410: 2, 4420: 1) and one automation user.
	got := r.Resolve([]entity.LineItemCandidate{line(5)}, testTables())
	it := got[0]
	if it.Resolved || it.Attribution.CostCenter != constants.UnresolvedMarker {
		t.Fatalf("item = %+v", it)
	}
	if !strings.Contains(it.Reason, "3 RG users (4410: 2, 4420: 1)") {
		t.Fatalf("reason = %q", it.Reason)
	}
	if len(it.Notes) != 1 || !strings.Contains(it.Notes[0], "quantity 5") {
		t.Fatalf("notes = %q", it.Notes)
	}
	diags := Diagnostics(got)
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	for _, d := range diags {
		if d.Kind != constants.KindResolutionAmbiguous || d.Severity != constants.SeverityWarning {
			t.Errorf("diagnostic = %+v", d)
		}
	}

	got = r.Resolve([]entity.LineItemCandidate{line(3)}, testTables())
	if got[0].Resolved || len(got[0].Notes) != 0 {
		t.Fatalf("matching quantity: item = %+v", got[0])
	}
	if diags := Diagnostics(got); len(diags) != 1 {
		t.Fatalf("matching quantity: diagnostics = %+v", diags)
	}
}
