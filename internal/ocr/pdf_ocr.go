package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

func (e *Extractor) pdfToText(ctx context.Context, path string) ([]entity.OcrPage, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, []string{strings.TrimSpace(string(errb))}, err
	}
	// A form-feed \f is used as page separator by default
	raw := strings.Split(string(out), "\f")
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	pages := make([]entity.OcrPage, 0, len(raw))
	for i, p := range raw {
		if e.cfg.MaxPages > 0 && i == e.cfg.MaxPages {
			break
		}
		page := entity.OcrPage{Number: i + 1}
		for _, l := range strings.Split(strings.TrimRight(p, "\n"), "\n") {
			page.Lines = append(page.Lines, entity.OcrLine{Text: l})
		}
		pages = append(pages, page)
	}
	return pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) ([]entity.OcrPage, []string, error) {
	tmpDir, err := e.tempDir()
	if err != nil {
		return nil, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, append(args, path, prefix)...)
	if err != nil {
		return nil, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ... zero padded for long documents)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var warns []string
	pages := make([]entity.OcrPage, 0, len(matches))
	for i, img := range matches {
		page := entity.OcrPage{Number: i + 1}
		lines, err := e.tesseractTSV(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", page.Number, err))
			pages = append(pages, page)
			continue
		}
		page.Lines = lines
		if mean := meanConfidence(lines); mean >= 0 && mean < LowConfidence {
			warns = append(warns, fmt.Sprintf("page %d: low confidence %.1f", page.Number, mean))
		}
		pages = append(pages, page)
	}
	return pages, warns, nil
}

func (e *Extractor) tempDir() (string, error) {
	base := e.cfg.ArtifactCacheDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return os.MkdirTemp(base, "ih-pp-*")
}

func pageNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".png")
	n, _ := strconv.Atoi(name[strings.LastIndex(name, "-")+1:])
	return n
}

// tesseractTSV runs tesseract on one page image and parses its TSV output.
func (e *Extractor) tesseractTSV(ctx context.Context, path string) ([]entity.OcrLine, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return ParseTSV(out)
}
