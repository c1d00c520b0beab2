package reference

import (
	"testing"
)

func TestMatch(t *testing.T) {
	table := NewTable(map[string]int{
		"Anna Andersson":   1,
		"Bertil Berg":      2,
		"Cecilia Carlsson": 3,
		"Erik Ek":          4,
		"ERIK EK":          5,
		"Jan Svensson":     6,
		"Jon Svensson":     7,
	})
	tests := []struct {
		name      string
		candidate string
		maxDist   int
		tier      MatchTier
		key       string
	}{
		{"exact", "Anna Andersson", 3, Exact, "Anna Andersson"},
		{"exact wins over fold", "Erik Ek", 3, Exact, "Erik Ek"},
		{"case insensitive", "bertil berg", 3, CaseInsensitive, "Bertil Berg"},
		{"fold collision", "erik ek", 3, Ambiguous, ""},
		{"fuzzy", "Cecilia Karlsson", 3, Fuzzy, "Cecilia Carlsson"},
		{"fuzzy bound", "Cecilia Karlsson", 0, NoMatch, ""},
		{"fuzzy tie", "Jxn Svensson", 3, Ambiguous, ""},
		{"short candidate never fuzzy", "Ek", 3, NoMatch, ""},
		{"too far", "Dagmar Dahl", 3, NoMatch, ""},
		{"empty", "  ", 3, NoMatch, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.candidate, table, tt.maxDist)
			if got.Tier != tt.tier || got.Key != tt.key {
				t.Fatalf("Match(%q) = %+v, want tier %s key %q", tt.candidate, got, tt.tier, tt.key)
			}
			if got.Tier == Ambiguous && len(got.Tied) < 2 {
				t.Fatalf("ambiguous result should list tied keys, got %v", got.Tied)
			}
		})
	}
}

func TestMatchEmptyTable(t *testing.T) {
	var nilTable *Table[string]
	if got := Match("x", nilTable, 3); got.Tier != NoMatch {
		t.Fatalf("Match on nil table = %+v", got)
	}
}

func TestTablesProjectFallback(t *testing.T) {
	tables := Tables{Projects: NewTable(map[string]Project{
		"20250001": {ID: "20250001", KonProj: "P.20250001", Activity: "100", ProjectCategory: "5420", Receiver: "Ekonomi"},
	})}

	if p, ok := tables.Project("P.20250001"); !ok || p.Receiver != "Ekonomi" {
		t.Fatalf("Project(P.20250001) = %+v, %v", p, ok)
	}
	if p, ok := tables.Project(AutomationProjectID); ok || p.Activity != "050" || p.Receiver != "Digital Utveckling och integration" {
		t.Fatalf("Project(automation) = %+v, %v", p, ok)
	}
	p, ok := tables.Project("20999999")
	if ok || p.KonProj != "P.20999999" || p.Activity != "738" || p.Receiver != "Okänd mottagare" {
		t.Fatalf("Project(unknown) = %+v, %v", p, ok)
	}
	if got := tables.AutomationProject(); got.ID != AutomationProjectID {
		t.Fatalf("AutomationProject() = %+v", got)
	}
}

func TestMerge(t *testing.T) {
	base := NewTable(map[string]string{"a": "1", "b": "2"})
	over := NewTable(map[string]string{"b": "3", "c": "4"})
	m := Merge(base, over)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if v, _ := m.Get("b"); v != "3" {
		t.Fatalf("Get(b) = %q, want 3", v)
	}
	keys := m.Keys()
	if keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("keys not sorted: %v", keys)
	}
}
