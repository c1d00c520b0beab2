package normalize

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

// DefaultNoiseChars are characters that OCR emits for table borders and specks.
const DefaultNoiseChars = "|~_^¦«»•"

// Options configure a Normalizer.
type Options struct {
	Locale     string // "sv" or "en"
	NoiseChars string
}

// Normalizer turns raw OCR lines into clean, locale-unified text lines.
// It never fails and never drops a line: a line that cleans down to nothing
// is kept as an empty line.
type Normalizer struct {
	locale string
	noise  string
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NoiseChars == "" {
		opts.NoiseChars = DefaultNoiseChars
	}
	locale := strings.ToLower(opts.Locale)
	if locale != "en" {
		locale = "sv"
	}
	return &Normalizer{locale: locale, noise: opts.NoiseChars, logger: logger}
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`[\t\f\v]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxRule    = regexp.MustCompile(`^[-=_.·—–\s]{3,}$`)

	// letter O read in place of a zero
	reODigit    = regexp.MustCompile(`(\d)[Oo](\d)`)
	reODecimal  = regexp.MustCompile(`(\d)[Oo]([.,][\dOo])`)
	reOFraction = regexp.MustCompile(`(\d[.,]\d*)[Oo]([Oo\d]*)\b`)

	reSplitEnd   = regexp.MustCompile(`\d[,.]$`)
	reDigitStart = regexp.MustCompile(`^\d`)

	// sv: 1.234,56 / 2,00. Space-separated groups stay separate tokens since
	// "3 100,00" may be a quantity and a price; the extractor re-joins them.
	reSvDecimal = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})+|\d+),(\d{1,2})\b`)
	reSvGroup   = regexp.MustCompile(`\.`)
	// en: 1,234.56
	reEnGroup = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)
)

type unit struct {
	indexes []int
	text    string
}

// Normalize cleans every line of doc, re-joins numbers split across lines and
// unifies the decimal separator to '.'.
func (n *Normalizer) Normalize(doc entity.RawOcrDocument) []entity.NormalizedLine {
	raw := doc.Lines()
	units := make([]unit, len(raw))
	for i, l := range raw {
		units[i] = unit{indexes: []int{i}, text: l.Text}
	}
	out := n.run(units)
	n.logger.Debug("normalize.done", "raw_lines", len(raw), "lines", len(out))
	return out
}

// NormalizeLines runs the same passes over already normalized lines, keeping
// their source indexes. Normalize(x) fed through NormalizeLines is unchanged.
func (n *Normalizer) NormalizeLines(lines []entity.NormalizedLine) []entity.NormalizedLine {
	units := make([]unit, len(lines))
	for i, l := range lines {
		idx := l.SourceIndexes
		if len(idx) == 0 {
			idx = []int{l.Index}
		}
		units[i] = unit{indexes: slices.Clone(idx), text: l.Text}
	}
	return n.run(units)
}

func (n *Normalizer) run(units []unit) []entity.NormalizedLine {
	for i := range units {
		units[i].text = n.CleanLine(units[i].text)
	}
	merged := mergeSplitNumbers(units)

	out := make([]entity.NormalizedLine, 0, len(merged))
	for _, u := range merged {
		out = append(out, entity.NormalizedLine{
			Index:         u.indexes[0],
			SourceIndexes: u.indexes,
			Text:          n.unifyDecimals(u.text),
		})
	}
	return out
}

// CleanLine applies the per-line passes: whitespace, noise tokens, box rules
// and O/0 confusion.
func (n *Normalizer) CleanLine(s string) string {
	s = reCRLF.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = reTabs.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, n.noise)
		if f != "" {
			kept = append(kept, f)
		}
	}
	s = strings.Join(kept, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")

	if reBoxRule.MatchString(s) {
		return ""
	}
	for {
		next := reODigit.ReplaceAllString(s, "${1}0${2}")
		next = reODecimal.ReplaceAllString(next, "${1}0${2}")
		next = reOFraction.ReplaceAllString(next, "${1}0${2}")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// mergeSplitNumbers joins a line ending in "<digit>," or "<digit>." with the
// following line when that one starts with a digit. Chains are followed.
func mergeSplitNumbers(units []unit) []unit {
	out := make([]unit, 0, len(units))
	for i := 0; i < len(units); i++ {
		cur := units[i]
		for i+1 < len(units) && reSplitEnd.MatchString(cur.text) && reDigitStart.MatchString(units[i+1].text) {
			cur.text += units[i+1].text
			cur.indexes = append(cur.indexes, units[i+1].indexes...)
			i++
		}
		out = append(out, cur)
	}
	return out
}

func (n *Normalizer) unifyDecimals(s string) string {
	if n.locale == "en" {
		return replaceIsolated(reEnGroup, s, ",", func(sub []string) string {
			return strings.ReplaceAll(sub[0], ",", "")
		})
	}
	return replaceIsolated(reSvDecimal, s, ".,", func(sub []string) string {
		return reSvGroup.ReplaceAllString(sub[1], "") + "." + sub[2]
	})
}

// replaceIsolated rewrites matches of re that are not glued to a neighbouring
// number: a match preceded by '.' or ',' or followed by one of the trailing
// separators and a digit is left alone ("1,2,3" is not a decimal).
func replaceIsolated(re *regexp.Regexp, s, trailing string, fn func(sub []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > 0 && strings.ContainsRune(".,", rune(s[start-1])) {
			continue
		}
		if end+1 < len(s) && strings.ContainsRune(trailing, rune(s[end])) && isDigit(s[end+1]) {
			continue
		}
		sub := make([]string, len(loc)/2)
		for i := range sub {
			if loc[2*i] >= 0 {
				sub[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(s[last:start])
		b.WriteString(fn(sub))
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
