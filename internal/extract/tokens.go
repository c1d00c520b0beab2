package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

var currencyAliases = map[string]string{
	"kr":  "SEK",
	":-":  "SEK",
	"sek": "SEK",
	"eur": "EUR",
	"€":   "EUR",
	"usd": "USD",
	"$":   "USD",
	"gbp": "GBP",
	"£":   "GBP",
	"nok": "NOK",
	"dkk": "DKK",
}

var reNumberToken = regexp.MustCompile(`(?i)^(€|\$|£|sek|eur|usd|gbp|nok|dkk)?(-?\d+(?:\.\d+)?)(-)?(kr|:-|€|\$|£|sek|eur|usd|gbp|nok|dkk)?$`)

var (
	reGroupHead = regexp.MustCompile(`^\d{1,3}$`)
	reGroupTail = regexp.MustCompile(`^\d{3}(?:\.\d+)?$`)
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokNumber
	tokUnit
	tokCurrency
)

type token struct {
	raw      string
	kind     tokenKind
	value    decimal.Decimal
	currency string
}

func currencyCode(s string) (string, bool) {
	c, ok := currencyAliases[strings.ToLower(s)]
	return c, ok
}

func (l Layout) classify(raw string) token {
	t := token{raw: raw}
	if c, ok := currencyCode(raw); ok {
		t.kind = tokCurrency
		t.currency = c
		return t
	}
	if l.isUnit(raw) {
		t.kind = tokUnit
		return t
	}
	m := reNumberToken.FindStringSubmatch(raw)
	if m == nil {
		return t
	}
	v, err := decimal.NewFromString(m[2])
	if err != nil {
		return t
	}
	if m[3] == "-" {
		v = v.Neg()
	}
	t.kind = tokNumber
	t.value = v
	if m[1] != "" {
		t.currency, _ = currencyCode(m[1])
	} else if m[4] != "" {
		t.currency, _ = currencyCode(m[4])
	}
	return t
}

// itemLine is an item-region line split into description and numeric cluster.
type itemLine struct {
	description string
	period      string
	amounts     []*entity.Amount
}

func (il itemLine) numbersOnly() bool {
	return il.description == "" && len(il.amounts) > 0
}

// parseItemLine removes the service period and ignore patterns, then takes
// the trailing run of number, unit and currency tokens as the numeric cluster.
func (l Layout) parseItemLine(text string) itemLine {
	var il itemLine
	if l.Period != nil {
		if loc := l.Period.FindStringIndex(text); loc != nil {
			il.period = strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")
			text = text[:loc[0]] + " " + text[loc[1]:]
		}
	}
	for _, re := range l.Ignore {
		text = re.ReplaceAllString(text, " ")
	}

	fields := strings.Fields(text)
	toks := make([]token, len(fields))
	for i, f := range fields {
		toks[i] = l.classify(f)
	}
	start := len(toks)
	for start > 0 && toks[start-1].kind != tokText {
		start--
	}
	cluster := toks[start:]

	// With a unit token in the cluster the quantity is the number right before
	// it; numbers ahead of that belong to the description ("MS 365 2 ST ...").
	if u := indexOfKind(cluster, tokUnit); u > 0 {
		q := u - 1
		for q >= 0 && cluster[q].kind == tokCurrency {
			q--
		}
		if q > 0 {
			start += q
			cluster = cluster[q:]
		}
	}
	il.description = strings.Join(fields[:start], " ")
	il.amounts = attachCurrencies(joinGroups(cluster, 3))
	return il
}

// joinGroups re-joins space-separated thousands groups ("1 200.00" is 1200.00),
// working from the right, as long as at least keep numbers remain. With fewer
// numbers the tokens are read as separate values ("3 100.00 300.00").
func joinGroups(toks []token, keep int) []token {
	n := 0
	for _, t := range toks {
		if t.kind == tokNumber {
			n++
		}
	}
	out := slices.Clone(toks)
	chain := -1 // index of a joined token that may take one more leading group
	for j := len(out) - 1; j > 0 && n > keep; j-- {
		tail, head := out[j], out[j-1]
		if head.kind != tokNumber || !reGroupHead.MatchString(head.raw) {
			continue
		}
		if j != chain && (tail.kind != tokNumber || !reGroupTail.MatchString(tail.raw)) {
			continue
		}
		raw := head.raw + tail.raw
		v, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		out[j-1] = token{raw: raw, kind: tokNumber, value: v}
		out = slices.Delete(out, j, j+1)
		n--
		chain = -1
		if len(head.raw) == 3 {
			chain = j - 1
		}
	}
	return out
}

func indexOfKind(toks []token, k tokenKind) int {
	for i, t := range toks {
		if t.kind == k {
			return i
		}
	}
	return -1
}

// attachCurrencies returns the numbers of a cluster in order. A currency token
// tags the number before it, or the one after it when it leads.
func attachCurrencies(cluster []token) []*entity.Amount {
	var out []*entity.Amount
	pending := ""
	for i, t := range cluster {
		switch t.kind {
		case tokNumber:
			a := entity.NewAmount(t.value, t.currency)
			if a.Currency == "" && pending != "" {
				a.Currency = pending
			}
			pending = ""
			out = append(out, a)
		case tokCurrency:
			if i > 0 && cluster[i-1].kind == tokNumber && out[len(out)-1].Currency == "" {
				out[len(out)-1].Currency = t.currency
				continue
			}
			pending = t.currency
		default:
			if t.kind == tokText {
				pending = ""
			}
		}
	}
	return out
}

// lastAmount returns the last number on a line, with its currency tag.
func (l Layout) lastAmount(text string) *entity.Amount {
	fields := strings.Fields(text)
	toks := make([]token, len(fields))
	for i, f := range fields {
		toks[i] = l.classify(f)
	}
	amounts := attachCurrencies(joinGroups(toks, 1))
	if len(amounts) == 0 {
		return nil
	}
	return amounts[len(amounts)-1]
}
