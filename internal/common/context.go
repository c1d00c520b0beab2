package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID   contextKey = "run_id"
	ContextKeyInvoice contextKey = "invoice_path"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithInvoicePath adds the source invoice path to the context
func WithInvoicePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ContextKeyInvoice, path)
}

// InvoicePathFromContext extracts the source invoice path from context
func InvoicePathFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyInvoice).(string); ok {
		return p
	}
	return ""
}

// LoggerFor returns logger enriched with the run attributes found in ctx.
func LoggerFor(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if p := InvoicePathFromContext(ctx); p != "" {
		logger = logger.With("invoice", p)
	}
	return logger
}
