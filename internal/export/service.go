package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

const (
	KonteringFile = "kontering.xlsx"
	CommentFile   = "comment.txt"
)

// RunRecorder persists run summaries. It is satisfied by the run log repository.
type RunRecorder interface {
	Record(ctx context.Context, s entity.RunSummary) error
}

// Service writes the backup directory of a finished run and records it in the
// run log.
type Service struct {
	outDir string
	runs   RunRecorder
	logger *slog.Logger
}

// NewService returns a Service writing under outDir. runs may be nil.
func NewService(outDir string, runs RunRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{outDir: outDir, runs: runs, logger: logger}
}

// BackupDir is the directory a run's files are written to.
func (s *Service) BackupDir(rec *entity.RunRecord) string {
	return filepath.Join(s.outDir, rec.StartedAt.Format(constants.BackupTimestampLayout)+"_"+rec.ID)
}

// Export writes the backup documents of rec and returns their directory.
// Documents are only written for the stages the run reached; run.json is
// always written. Every JSON document is checked against its schema first.
func (s *Service) Export(ctx context.Context, rec *entity.RunRecord) (string, error) {
	start := time.Now()
	logger := common.LoggerFor(ctx, s.logger)

	dir := s.BackupDir(rec)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	if rec.Document != nil {
		if err := writeJSON(dir, DocOCR, newOCRDocument(rec)); err != nil {
			return "", err
		}
	}
	if rec.Validation != nil {
		if err := writeJSON(dir, DocValidation, newValidationDocument(rec)); err != nil {
			return "", err
		}
		if err := writeJSON(dir, DocLedger, newLedgerDocument(rec)); err != nil {
			return "", err
		}
	}
	if len(rec.Entries) > 0 {
		xlsx, err := KonteringXLSX(rec.Entries)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, KonteringFile), xlsx, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", KonteringFile, err)
		}
		if err := os.WriteFile(filepath.Join(dir, CommentFile), []byte(Comment(rec.Items)+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", CommentFile, err)
		}
	}
	if err := writeJSON(dir, DocRun, newRunDocument(rec, dir)); err != nil {
		return "", err
	}

	if s.runs != nil {
		if err := s.runs.Record(ctx, Summarize(rec, dir)); err != nil {
			return dir, fmt.Errorf("record run: %w", err)
		}
	}

	logger.Info("export.ok",
		"dir", dir,
		"state", rec.State,
		"entries", len(rec.Entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return dir, nil
}

func writeJSON(dir, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := ValidateDocument(name, b); err != nil {
		return common.NewAppError("INVALID_BACKUP", "backup document failed validation", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
