package normalize

import (
	"reflect"
	"testing"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

func TestCleanLine(t *testing.T) {
	n := New(Options{Locale: "sv"}, nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tabs and spaces", "Microsoft\t\tTeams   EEA ", "Microsoft Teams EEA"},
		{"noise tokens", "| Power BI Pro | 1 ST ~", "Power BI Pro 1 ST"},
		{"glued noise", "|Copilot»", "Copilot"},
		{"box rule", "-------------", ""},
		{"letter o in number", "1O5,OO", "105,00"},
		{"o after decimal", "12,5O kr", "12,50 kr"},
		{"words untouched", "Office 365 Pro", "Office 365 Pro"},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.CleanLine(tt.in); got != tt.want {
				t.Fatalf("CleanLine(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnifiesDecimals(t *testing.T) {
	tests := []struct {
		locale string
		in     string
		want   string
	}{
		{"sv", "Summa 1 234,56", "Summa 1 234.56"},
		{"sv", "Summa 1.234,56", "Summa 1234.56"},
		{"sv", "A 2 10,00 20,00", "A 2 10.00 20.00"},
		{"sv", "Widget 3 100,00 300,00", "Widget 3 100.00 300.00"},
		{"sv", "Period 240101 - 240131", "Period 240101 - 240131"},
		{"en", "Subtotal 1,234.56", "Subtotal 1234.56"},
		{"en", "B 1 5.00 5.00", "B 1 5.00 5.00"},
	}
	for _, tt := range tests {
		n := New(Options{Locale: tt.locale}, nil)
		got := n.Normalize(entity.DocumentFromText("t", []string{tt.in}))
		if len(got) != 1 || got[0].Text != tt.want {
			t.Fatalf("[%s] Normalize(%q) = %+v, want %q", tt.locale, tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMergesSplitNumbers(t *testing.T) {
	n := New(Options{Locale: "sv"}, nil)
	doc := entity.DocumentFromText("t", []string{
		"Power BI Pro 1 ST 99,",
		"00 99,00",
		"Delsumma 1 2",
		"34,",
		"5",
		"6",
	})
	got := n.Normalize(doc)
	want := []entity.NormalizedLine{
		{Index: 0, SourceIndexes: []int{0, 1}, Text: "Power BI Pro 1 ST 99.00 99.00"},
		{Index: 2, SourceIndexes: []int{2}, Text: "Delsumma 1 2"},
		{Index: 3, SourceIndexes: []int{3, 4}, Text: "34.5"},
		{Index: 5, SourceIndexes: []int{5}, Text: "6"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestNormalizeKeepsEveryLine(t *testing.T) {
	n := New(Options{}, nil)
	raw := []string{"Faktura", "", "|||", "----", "A 2 10,00 20,00", "x.", "1"}
	got := n.Normalize(entity.DocumentFromText("t", raw))

	seen := map[int]bool{}
	for _, l := range got {
		for _, i := range l.SourceIndexes {
			if seen[i] {
				t.Fatalf("raw line %d used twice", i)
			}
			seen[i] = true
		}
	}
	if len(seen) != len(raw) {
		t.Fatalf("accounted for %d raw lines, want %d", len(seen), len(raw))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := [][]string{
		{"Faktura 12345", "Beskrivning Antal Pris Belopp", "Power BI Pro 1 ST 99,", "00 99,00", "Delsumma 99,00", "Moms 24,75", "Att betala 123,75"},
		{"| Teams EEA 2 st 1O,OO 20,OO |", "", "-----", "Jane Doe", "Summa 1 234,56 kr"},
		{"Subtotal 1,234.56", "Tax 0.", "00", "Total 1,234.56"},
		{"1,", "2,", "3"},
	}
	for _, locale := range []string{"sv", "en"} {
		n := New(Options{Locale: locale}, nil)
		for _, in := range inputs {
			once := n.Normalize(entity.DocumentFromText("t", in))
			twice := n.NormalizeLines(once)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("[%s] not idempotent:\nonce  %+v\ntwice %+v", locale, once, twice)
			}
		}
	}
}
