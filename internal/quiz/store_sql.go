package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	sj, err := json.Marshal(t.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,title,description,duration_min,sections_json,created_by,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			duration_min=EXCLUDED.duration_min, sections_json=EXCLUDED.sections_json, updated_at=EXCLUDED.updated_at`,
		t.ID, t.Settings.Title, t.Settings.Description, t.Settings.DurationMin,
		string(sj), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,description,duration_min,sections_json,created_by,created_at,updated_at FROM tests WHERE id=$1`, id)
	var t Test
	var sj string
	if err := row.Scan(&t.ID, &t.Settings.Title, &t.Settings.Description, &t.Settings.DurationMin,
		&sj, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrTestNotFound
		}
		return Test{}, err
	}
	if err := json.Unmarshal([]byte(sj), &t.Sections); err != nil {
		return Test{}, fmt.Errorf("unmarshal sections: %w", err)
	}
	return t, nil
}

func (s *SQLStore) GetTestStudent(ctx context.Context, id string) (Test, error) {
	t, err := s.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	return StripAnswers(t), nil
}

func (s *SQLStore) DeleteTest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (s *SQLStore) ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error) {
	q := `SELECT id,title,sections_json,created_by,updated_at FROM tests`
	var args []any
	if opts.CreatedBy != "" {
		q += ` WHERE created_by=$1`
		args = append(args, opts.CreatedBy)
	}
	q += ` ORDER BY updated_at DESC`
	q += limitOffset(len(args), opts.Limit, opts.Offset, &args)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TestSummary
	for rows.Next() {
		var ts TestSummary
		var sj string
		if err := rows.Scan(&ts.ID, &ts.Title, &sj, &ts.CreatedBy, &ts.UpdatedAt); err != nil {
			return nil, err
		}
		var sections []Section
		if err := json.Unmarshal([]byte(sj), &sections); err == nil {
			ts.SectionCount = len(sections)
			for _, sec := range sections {
				ts.QuestionCount += len(sec.Questions)
			}
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutAttempt(ctx context.Context, a Attempt) error {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var ended sql.NullInt64
	if a.EndedAt != 0 {
		ended = sql.NullInt64{Int64: a.EndedAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,test_id,student_name,student_ext_id,status,current_section,remaining_sec,answers_json,violation_count,started_at,ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, current_section=EXCLUDED.current_section,
			remaining_sec=EXCLUDED.remaining_sec, answers_json=EXCLUDED.answers_json,
			violation_count=EXCLUDED.violation_count, ended_at=EXCLUDED.ended_at`,
		a.ID, a.TestID, a.Student.Name, a.Student.ExternalID, string(a.Status),
		a.CurrentSection, a.RemainingSec, string(aj), a.ViolationCount, a.StartedAt, ended)
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,test_id,student_name,student_ext_id,status,current_section,remaining_sec,answers_json,violation_count,started_at,ended_at FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status, aj string
	var ended sql.NullInt64
	if err := row.Scan(&a.ID, &a.TestID, &a.Student.Name, &a.Student.ExternalID, &status,
		&a.CurrentSection, &a.RemainingSec, &aj, &a.ViolationCount, &a.StartedAt, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	if ended.Valid {
		a.EndedAt = ended.Int64
	}
	if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
		a.Answers = map[string]any{}
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id,test_id,student_name,student_ext_id,status,current_section,remaining_sec,answers_json,violation_count,started_at,ended_at FROM attempts WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s=$%d", clause, len(args))
	}
	if opts.TestID != "" {
		add("test_id", opts.TestID)
	}
	if opts.Student != "" {
		add("student_ext_id", opts.Student)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	q += ` ORDER BY started_at DESC`
	q += limitOffset(len(args), opts.Limit, opts.Offset, &args)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutResult(ctx context.Context, r Result) error {
	pj, err := json.Marshal(r.PerQuestion)
	if err != nil {
		return fmt.Errorf("marshal per-question: %w", err)
	}
	// DO NOTHING keeps the first finalization's result under replay.
	_, err = s.db.ExecContext(ctx, `INSERT INTO results
		(attempt_id,test_id,per_question_json,correct,total,score,violation_count,started_at,ended_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (attempt_id) DO NOTHING`,
		r.AttemptID, r.TestID, string(pj), r.Correct, r.Total, r.Score,
		r.ViolationCount, r.StartedAt, r.EndedAt, time.Now().Unix())
	return err
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attempt_id,test_id,per_question_json,correct,total,score,violation_count,started_at,ended_at FROM results WHERE attempt_id=$1`, attemptID)
	var r Result
	var pj string
	if err := row.Scan(&r.AttemptID, &r.TestID, &pj, &r.Correct, &r.Total, &r.Score,
		&r.ViolationCount, &r.StartedAt, &r.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, err
	}
	if err := json.Unmarshal([]byte(pj), &r.PerQuestion); err != nil {
		r.PerQuestion = map[string]bool{}
	}
	return r, nil
}

func limitOffset(argBase, limit, offset int, args *[]any) string {
	var out string
	if limit > 0 {
		*args = append(*args, limit)
		out += fmt.Sprintf(" LIMIT $%d", argBase+1)
		argBase++
	}
	if offset > 0 {
		*args = append(*args, offset)
		out += fmt.Sprintf(" OFFSET $%d", argBase+1)
	}
	return out
}
