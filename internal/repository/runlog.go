package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
)

const runsTable = "invoice_runs"

var runColumns = []string{
	"id",
	"source_path",
	"invoice_number",
	"state",
	"status",
	"computed_subtotal",
	"entry_count",
	"diagnostic_count",
	"backup_dir",
	"started_at",
	"finished_at",
}

// RunLogRepository keeps one summary row per pipeline run.
type RunLogRepository interface {
	Migrate(ctx context.Context) error
	Record(ctx context.Context, s entity.RunSummary) error
	Get(ctx context.Context, id string) (*entity.RunSummary, error)
	ListRecent(ctx context.Context, limit int) ([]entity.RunSummary, error)
}

type runLogRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewRunLogRepository(db *DB, logger *slog.Logger) RunLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runLogRepo{
		drv:    db.Driver,
		logger: logger,
	}
}

func (r *runLogRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// Migrate creates the runs table when it does not exist.
func (r *runLogRepo) Migrate(ctx context.Context) error {
	b := r.builder()
	create, args := b.CreateTable(runsTable).IfNotExists().
		Columns(
			b.Column("id").Type("varchar(64)").Attr("NOT NULL"),
			b.Column("source_path").Type("text").Attr("NOT NULL"),
			b.Column("invoice_number").Type("varchar(64)").Attr("NOT NULL DEFAULT ''"),
			b.Column("state").Type("varchar(16)").Attr("NOT NULL"),
			b.Column("status").Type("varchar(32)").Attr("NOT NULL DEFAULT ''"),
			b.Column("computed_subtotal").Type("varchar(64)").Attr("NOT NULL DEFAULT ''"),
			b.Column("entry_count").Type("integer").Attr("NOT NULL DEFAULT 0"),
			b.Column("diagnostic_count").Type("integer").Attr("NOT NULL DEFAULT 0"),
			b.Column("backup_dir").Type("text").Attr("NOT NULL DEFAULT ''"),
			b.Column("started_at").Type("bigint").Attr("NOT NULL"),
			b.Column("finished_at").Type("bigint").Attr("NOT NULL DEFAULT 0"),
		).
		PrimaryKey("id").
		Query()
	if _, err := r.drv.ExecContext(ctx, create, args...); err != nil {
		r.logger.Error("failed to create runs table", "error", err)
		return fmt.Errorf("create %s: %w", runsTable, err)
	}

	index := "CREATE INDEX IF NOT EXISTS " + runsTable + "_started_at ON " + runsTable + " (started_at)"
	if _, err := r.drv.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Record inserts s, replacing an earlier row of the same run.
func (r *runLogRepo) Record(ctx context.Context, s entity.RunSummary) error {
	q, args := r.builder().Insert(runsTable).
		Columns(runColumns...).
		Values(
			s.ID,
			s.SourcePath,
			s.InvoiceNumber,
			s.State,
			s.Status,
			s.ComputedSubtotal,
			s.EntryCount,
			s.DiagnosticCount,
			s.BackupDir,
			toMillis(s.StartedAt),
			toMillis(s.FinishedAt),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.drv.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to record run", "run_id", s.ID, "error", err)
		return fmt.Errorf("%w: record run %s: %v", common.ErrDatabase, s.ID, err)
	}
	r.logger.Debug("runlog.recorded", "run_id", s.ID, "state", s.State)
	return nil
}

func (r *runLogRepo) Get(ctx context.Context, id string) (*entity.RunSummary, error) {
	q, args := r.builder().Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	rows, err := r.drv.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get run %s: %v", common.ErrDatabase, id, err)
	}
	defer rows.Close()

	out, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.NewAppError("RUN_NOT_FOUND", fmt.Sprintf("run %s", id), common.ErrNotFound)
	}
	return &out[0], nil
}

// ListRecent returns up to limit runs, newest first.
func (r *runLogRepo) ListRecent(ctx context.Context, limit int) ([]entity.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args := r.builder().Select(runColumns...).
		From(entsql.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"), entsql.Asc("id")).
		Limit(limit).
		Query()
	rows, err := r.drv.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]entity.RunSummary, error) {
	out := []entity.RunSummary{}
	for rows.Next() {
		var (
			s                 entity.RunSummary
			started, finished int64
		)
		if err := rows.Scan(
			&s.ID,
			&s.SourcePath,
			&s.InvoiceNumber,
			&s.State,
			&s.Status,
			&s.ComputedSubtotal,
			&s.EntryCount,
			&s.DiagnosticCount,
			&s.BackupDir,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = fromMillis(started)
		s.FinishedAt = fromMillis(finished)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
