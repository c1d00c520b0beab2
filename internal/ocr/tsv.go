package ocr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

// tesseract TSV columns
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const levelWord = 5

type lineKey struct{ block, par, line int }

// ParseTSV groups the word rows of tesseract's TSV output into text lines.
// Line confidence is the mean of its word confidences; words reported with
// confidence -1 carry no text and are skipped.
func ParseTSV(data []byte) ([]entity.OcrLine, error) {
	rows := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var (
		order []lineKey
		words = map[lineKey][]entity.OcrWord{}
	)
	for i, row := range rows {
		if i == 0 && strings.HasPrefix(row, "level") {
			continue
		}
		if strings.TrimSpace(row) == "" {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < tsvColumns {
			return nil, fmt.Errorf("tsv row %d: %d columns, want %d", i+1, len(cols), tsvColumns)
		}
		if atoi(cols[colLevel]) != levelWord {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[colText:], "\t"))
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[colConf]), 64)
		if err != nil {
			return nil, fmt.Errorf("tsv row %d: bad confidence %q", i+1, cols[colConf])
		}
		if text == "" || conf < 0 {
			continue
		}
		k := lineKey{atoi(cols[colBlock]), atoi(cols[colPar]), atoi(cols[colLine])}
		if _, ok := words[k]; !ok {
			order = append(order, k)
		}
		words[k] = append(words[k], entity.OcrWord{
			Text:       text,
			Confidence: conf,
			Box: entity.BoundingBox{
				Left:   atoi(cols[colLeft]),
				Top:    atoi(cols[colTop]),
				Width:  atoi(cols[colWidth]),
				Height: atoi(cols[colHeight]),
			},
		})
	}

	lines := make([]entity.OcrLine, 0, len(order))
	for _, k := range order {
		ws := words[k]
		texts := make([]string, len(ws))
		box := ws[0].Box
		var sum float64
		for i, w := range ws {
			texts[i] = w.Text
			sum += w.Confidence
			box = box.Union(w.Box)
		}
		mean := sum / float64(len(ws))
		lines = append(lines, entity.OcrLine{
			Text:       strings.Join(texts, " "),
			Confidence: &mean,
			Box:        &box,
			Words:      ws,
		})
	}
	return lines, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// meanConfidence averages the line confidences of a page, -1 when none.
func meanConfidence(lines []entity.OcrLine) float64 {
	var sum float64
	var n int
	for _, l := range lines {
		if l.Confidence != nil {
			sum += *l.Confidence
			n++
		}
	}
	if n == 0 {
		return -1
	}
	return sum / float64(n)
}
