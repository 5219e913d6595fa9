package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is the archived form of one workflow run.
type RunRecord struct {
	ID           string       `json:"id"`
	Workflow     string       `json:"workflow"`
	Status       string       `json:"status"`
	ErrorDetails string       `json:"error_details,omitempty"`
	Total        int          `json:"total"`
	Completed    int          `json:"completed"`
	Failed       int          `json:"failed"`
	Skipped      int          `json:"skipped"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	Tasks        []TaskRecord `json:"tasks,omitempty"`
}

// TaskRecord is the archived form of one task run.
type TaskRecord struct {
	TaskID     string   `json:"task_id"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Attempts   int      `json:"attempts"`
	Confidence *float64 `json:"confidence,omitempty"`
	ReviewNote string   `json:"review_note,omitempty"`
}

// SaveRun archives a run and its tasks, replacing any previous archive of
// the same run ID.
func (db *DB) SaveRun(rec *RunRecord) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, workflow, status, error_details, total, completed, failed, skipped, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error_details = excluded.error_details,
			total = excluded.total,
			completed = excluded.completed,
			failed = excluded.failed,
			skipped = excluded.skipped,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, rec.ID, rec.Workflow, rec.Status, rec.ErrorDetails,
		rec.Total, rec.Completed, rec.Failed, rec.Skipped,
		formatTime(rec.StartedAt), formatTimePtr(rec.EndedAt))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if _, err := db.Exec("DELETE FROM run_tasks WHERE run_id = ?", rec.ID); err != nil {
		return fmt.Errorf("clear run tasks: %w", err)
	}
	for _, task := range rec.Tasks {
		_, err := db.Exec(`
			INSERT INTO run_tasks (run_id, task_id, status, error, attempts, confidence, review_note)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, task.TaskID, task.Status, task.Error, task.Attempts, task.Confidence, task.ReviewNote)
		if err != nil {
			return fmt.Errorf("save run task %s: %w", task.TaskID, err)
		}
	}

	return nil
}

// GetRun retrieves an archived run by ID, including its tasks.
// Returns nil if no run with that ID is archived.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, workflow, status, error_details, total, completed, failed, skipped, started_at, ended_at
		FROM runs WHERE id = ?
	`, id)

	rec, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := db.Query(`
		SELECT task_id, status, error, attempts, confidence, review_note
		FROM run_tasks WHERE run_id = ? ORDER BY task_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task TaskRecord
		var taskErr, note sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&task.TaskID, &task.Status, &taskErr, &task.Attempts, &confidence, &note); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		task.Error = taskErr.String
		task.ReviewNote = note.String
		if confidence.Valid {
			c := confidence.Float64
			task.Confidence = &c
		}
		rec.Tasks = append(rec.Tasks, task)
	}

	return rec, rows.Err()
}

// ListRuns returns archived runs ordered newest first, without task detail.
// A non-positive limit returns all runs.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, workflow, status, error_details, total, completed, failed, skipped, started_at, ended_at
		FROM runs ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// DeleteRun removes an archived run and its tasks.
func (db *DB) DeleteRun(id string) error {
	if _, err := db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// scanRun reads one runs row via the provided scan function.
func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var rec RunRecord
	var errDetails, startedAt, endedAt sql.NullString
	err := scan(&rec.ID, &rec.Workflow, &rec.Status, &errDetails,
		&rec.Total, &rec.Completed, &rec.Failed, &rec.Skipped, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	rec.ErrorDetails = errDetails.String
	if startedAt.Valid {
		rec.StartedAt = parseTime(startedAt.String)
	}
	if endedAt.Valid && endedAt.String != "" {
		t := parseTime(endedAt.String)
		rec.EndedAt = &t
	}
	return &rec, nil
}

// formatTime renders a time for storage. Zero times store as empty strings.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime reads a stored timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
