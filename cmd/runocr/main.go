package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/normalize"
	"github.com/joseph-ayodele/invoice-helper/internal/ocr"
)

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()

	var (
		locale = flag.String("locale", cfg.Invoice.Locale, "number locale of the invoice (sv or en)")
		raw    = flag.Bool("raw", false, "print the OCR lines before normalization")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-locale sv|en] [-raw] <invoice.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	doc, err := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger).Recognize(ctx, path)
	if err != nil {
		logger.Error("ocr failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	for _, w := range doc.Warnings {
		logger.Warn("ocr.warning", "detail", w)
	}

	if *raw {
		for i, t := range doc.Texts() {
			fmt.Printf("%4d  %s\n", i, t)
		}
		return
	}
	lines := normalize.New(normalize.Options{Locale: *locale}, logger).Normalize(doc)
	for _, l := range lines {
		fmt.Printf("%4d  %s\n", l.Index, l.Text)
	}
	logger.Info("ocr done",
		"path", path,
		"method", doc.Method,
		"pages", len(doc.Pages),
		"lines", len(lines),
		"duration_ms", time.Since(start).Milliseconds())
}
