// Package archive appends terminal job outcomes to Postgres. It is an audit
// trail only; the live job store is never rebuilt from it.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/sqlinline"
)

// Entry is one archived outcome.
type Entry struct {
	JobID       string    `json:"job_id"`
	OperationID string    `json:"operation_id"`
	Name        string    `json:"name"`
	Model       string    `json:"model"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	WorldID     string    `json:"world_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

type Recorder struct {
	sql infra.SQLExecutor
}

func NewRecorder(sql infra.SQLExecutor) *Recorder {
	return &Recorder{sql: sql}
}

// EnsureSchema creates the archive and credential tables when missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QEnsureIntegrationTokens, sqlinline.QEnsureWorldJobs} {
		if _, err := r.sql.Exec(ctx, q); err != nil {
			return fmt.Errorf("archive: ensure schema: %w", err)
		}
	}
	return nil
}

// Record stores a terminal job. Non-terminal jobs are ignored.
func (r *Recorder) Record(ctx context.Context, job domain.Job) error {
	if !job.Status.Terminal() {
		return nil
	}
	var (
		worldID  string
		worldRaw []byte
	)
	if job.World != nil {
		worldID = job.World.WorldID
		raw, err := json.Marshal(job.World)
		if err != nil {
			return fmt.Errorf("archive: encode world: %w", err)
		}
		worldRaw = raw
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertWorldJob,
		job.ID, job.OperationID, job.Name, job.Model, string(job.Status),
		job.Error, worldID, worldRaw, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("archive: insert job %s: %w", job.ID, err)
	}
	return nil
}

// Recent returns up to limit archived outcomes, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListWorldJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.JobID, &e.OperationID, &e.Name, &e.Model, &e.Status, &e.Error, &e.WorldID, &e.SubmittedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: rows: %w", err)
	}
	return out, nil
}
