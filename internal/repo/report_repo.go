package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/mrot/internal/domain"
)

// schema — таблица истории отчётов. Результаты шагов хранятся в JSONB.
const schema = `
	CREATE TABLE IF NOT EXISTS orchestration_reports (
		id          uuid PRIMARY KEY,
		name        text        NOT NULL,
		status      text        NOT NULL,
		steps       jsonb       NOT NULL DEFAULT '[]'::jsonb,
		started_at  timestamptz NOT NULL,
		finished_at timestamptz
	);
	CREATE INDEX IF NOT EXISTS orchestration_reports_name_started_idx
		ON orchestration_reports (name, started_at DESC);
`

// ReportRepo — репозиторий истории отчётов оркестрации.
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo создаёт новый ReportRepo.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *ReportRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save сохраняет отчёт. Повторное сохранение обновляет запись.
func (r *ReportRepo) Save(ctx context.Context, report *domain.Report) error {
	stepsJSON, err := encodeSteps(report.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orchestration_reports (id, name, status, steps, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, steps = EXCLUDED.steps, finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		report.ID,
		report.Name,
		report.Status,
		stepsJSON,
		report.StartedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetByID возвращает отчёт по ID.
func (r *ReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	query := `
		SELECT id, name, status, steps, started_at, finished_at
		FROM orchestration_reports
		WHERE id = $1
	`
	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return report, err
}

// List возвращает отчёты, новые первыми.
func (r *ReportRepo) List(ctx context.Context, filter ReportFilter) ([]domain.Report, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, name, status, steps, started_at, finished_at
		FROM orchestration_reports
		WHERE ($1::text IS NULL OR name = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Name),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// --- Helpers ---

// ReportFilter — параметры фильтрации отчётов.
type ReportFilter struct {
	Name   string
	Status domain.OrchestrationStatus
	Limit  int
	Offset int
}

// scanReport сканирует одну строку в Report. pgx.Rows реализует pgx.Row.
func scanReport(row pgx.Row) (*domain.Report, error) {
	var report domain.Report
	var stepsJSON []byte

	err := row.Scan(
		&report.ID,
		&report.Name,
		&report.Status,
		&stepsJSON,
		&report.StartedAt,
		&report.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	steps, err := decodeSteps(stepsJSON)
	if err != nil {
		return nil, err
	}
	report.Steps = steps

	return &report, nil
}

func encodeSteps(steps []domain.StepResult) ([]byte, error) {
	if steps == nil {
		steps = []domain.StepResult{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return data, nil
}

func decodeSteps(data []byte) ([]domain.StepResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var steps []domain.StepResult
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return steps, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
