package entity

// RawOcrDocument is the recognized text of one invoice PDF, page by page.
type RawOcrDocument struct {
	SourcePath string    `json:"source_path"`
	Method     string    `json:"method"`
	Pages      []OcrPage `json:"pages"`
	Warnings   []string  `json:"warnings,omitempty"`
}

type OcrPage struct {
	Number int       `json:"number"`
	Lines  []OcrLine `json:"lines"`
}

// OcrLine is a single recognized text line. Confidence and Box are nil when the
// engine did not report them (text-layer extraction, for example).
type OcrLine struct {
	Text       string       `json:"text"`
	Confidence *float64     `json:"confidence,omitempty"`
	Box        *BoundingBox `json:"box,omitempty"`
	Words      []OcrWord    `json:"words,omitempty"`
}

type OcrWord struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	left := min(b.Left, o.Left)
	top := min(b.Top, o.Top)
	right := max(b.Left+b.Width, o.Left+o.Width)
	bottom := max(b.Top+b.Height, o.Top+o.Height)
	return BoundingBox{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Lines flattens all pages in reading order.
func (d RawOcrDocument) Lines() []OcrLine {
	var n int
	for _, p := range d.Pages {
		n += len(p.Lines)
	}
	out := make([]OcrLine, 0, n)
	for _, p := range d.Pages {
		out = append(out, p.Lines...)
	}
	return out
}

// Texts returns the text of every line, in order.
func (d RawOcrDocument) Texts() []string {
	lines := d.Lines()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// DocumentFromText builds a single-page document from already split lines.
func DocumentFromText(source string, lines []string) RawOcrDocument {
	page := OcrPage{Number: 1, Lines: make([]OcrLine, len(lines))}
	for i, l := range lines {
		page.Lines[i] = OcrLine{Text: l}
	}
	return RawOcrDocument{SourcePath: source, Method: "text", Pages: []OcrPage{page}}
}

// NormalizedLine is a cleaned line. Index is the first contributing raw line,
// SourceIndexes every raw line merged into it.
type NormalizedLine struct {
	Index         int    `json:"index"`
	SourceIndexes []int  `json:"source_indexes"`
	Text          string `json:"text"`
}
