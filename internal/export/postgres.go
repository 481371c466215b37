package export

import (
	"context"
	"database/sql"
	"fmt"

	"student-grading/internal/common/database"
	"student-grading/internal/models"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS grading_runs (
	run_id           TEXT PRIMARY KEY,
	input_path       TEXT NOT NULL,
	output_path      TEXT NOT NULL,
	engine           TEXT NOT NULL,
	schema_name      TEXT NOT NULL,
	rows_total       INTEGER NOT NULL,
	passed           INTEGER NOT NULL,
	failed           INTEGER NOT NULL,
	defaulted_grades INTEGER NOT NULL,
	pass_threshold   NUMERIC(6,2) NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL
)`

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS graded_records (
	run_id          TEXT NOT NULL REFERENCES grading_runs(run_id) ON DELETE CASCADE,
	row_number      INTEGER NOT NULL,
	student_id      TEXT NOT NULL,
	age             TEXT NOT NULL,
	average_percent NUMERIC(7,2) NOT NULL,
	status          TEXT NOT NULL,
	PRIMARY KEY (run_id, row_number)
)`

const insertRun = `
	INSERT INTO grading_runs (
		run_id, input_path, output_path, engine, schema_name,
		rows_total, passed, failed, defaulted_grades, pass_threshold,
		started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertRecord = `
	INSERT INTO graded_records (
		run_id, row_number, student_id, age, average_percent, status
	) VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresExporter stores a run and its rows in one transaction.
type PostgresExporter struct {
	client *database.PostgresClient
}

func NewPostgresExporter(client *database.PostgresClient) *PostgresExporter {
	return &PostgresExporter{client: client}
}

func (e *PostgresExporter) Name() string { return "postgres" }

// EnsureSchema creates the result tables when they do not exist.
func (e *PostgresExporter) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{createRunsTable, createRecordsTable} {
		if _, err := e.client.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (e *PostgresExporter) Export(ctx context.Context, run *models.GradingRun) error {
	s := run.Summary
	return e.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertRun,
			s.RunID, s.InputPath, s.OutputPath, s.Engine, s.Schema,
			s.Rows, s.Passed, s.Failed, s.DefaultedGrades, s.PassThreshold,
			s.StartedAt, s.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, rec := range run.Records {
			// averages go in as text so NUMERIC keeps the rounded value exactly
			_, err := tx.ExecContext(ctx, insertRecord,
				s.RunID, i+1, rec.ID, rec.Age, rec.AverageText(), string(rec.Status),
			)
			if err != nil {
				return fmt.Errorf("insert row %d: %w", i+1, err)
			}
		}
		return nil
	})
}
