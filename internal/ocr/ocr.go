package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

// Recognition methods recorded on the document.
const (
	MethodTextLayer = "pdf-text"
	MethodOCR       = "pdf-ocr"
)

// LowConfidence is the mean page confidence (0..100) below which a page is flagged.
const LowConfidence = 60.0

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "swe"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	PSM           int // e.g., 6 is good for uniform block of text
	MaxPages      int // 0 = no limit

	// PreferTextLayer tries pdftotext first and only rasterizes when the PDF
	// has no usable text layer.
	PreferTextLayer bool

	ArtifactCacheDir string
}

// ConfigFrom maps the application config onto the OCR config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftotext:        c.Pdftotext,
		Pdftoppm:         c.Pdftoppm,
		Tesseract:        c.Tesseract,
		TesseractLang:    c.TesseractLang,
		TessdataDir:      c.TessdataDir,
		DPI:              c.DPI,
		PSM:              c.PSM,
		MaxPages:         c.MaxPages,
		PreferTextLayer:  c.PreferTextLayer,
		ArtifactCacheDir: c.ArtifactCacheDir,
	}
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "swe"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, runner: NewExecRunner(logger), logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Recognize turns an invoice PDF into text lines. Pages that cannot be read
// become warnings on the document; only a PDF that yields no page at all is
// an error.
func (e *Extractor) Recognize(ctx context.Context, path string) (entity.RawOcrDocument, error) {
	start := time.Now()
	doc := entity.RawOcrDocument{SourcePath: path}

	if !constants.IsInvoiceExt(filepath.Ext(path)) {
		return doc, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("not a pdf: %s", path), common.ErrInvalidInput)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, common.NewAppError("FILE_NOT_FOUND", path, common.ErrNotFound)
		}
		return doc, fmt.Errorf("stat %s: %w", path, err)
	}

	e.logger.Debug("ocr.start", "path", path, "prefer_text_layer", e.cfg.PreferTextLayer)
	if e.cfg.PreferTextLayer {
		pages, warns, err := e.pdfToText(ctx, path)
		doc.Warnings = append(doc.Warnings, warns...)
		switch {
		case err != nil:
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("text layer: %v", err))
		case hasText(pages):
			doc.Pages = pages
			doc.Method = MethodTextLayer
			e.logDone(doc, start)
			return doc, nil
		default:
			doc.Warnings = append(doc.Warnings, "text layer empty, falling back to OCR")
		}
	}

	pages, warns, err := e.pdfToOCR(ctx, path)
	doc.Warnings = append(doc.Warnings, warns...)
	if err != nil {
		e.logger.Error("ocr.failed", "path", path, "error", err)
		return doc, err
	}
	doc.Pages = pages
	doc.Method = MethodOCR
	e.logDone(doc, start)
	return doc, nil
}

func (e *Extractor) logDone(doc entity.RawOcrDocument, start time.Time) {
	e.logger.Info("ocr.done",
		"path", doc.SourcePath,
		"method", doc.Method,
		"pages", len(doc.Pages),
		"lines", len(doc.Lines()),
		"warnings", len(doc.Warnings),
		"duration_ms", time.Since(start).Milliseconds())
}

func hasText(pages []entity.OcrPage) bool {
	for _, p := range pages {
		for _, l := range p.Lines {
			if len(l.Text) > 0 {
				return true
			}
		}
	}
	return false
}
