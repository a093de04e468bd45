package quiz

import (
	"context"
	"errors"
)

var (
	ErrTestNotFound    = errors.New("test not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrResultNotFound  = errors.New("result not found")
)

type TestSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SectionCount  int    `json:"section_count"`
	QuestionCount int    `json:"question_count"`
	CreatedBy     string `json:"created_by,omitempty"`
	UpdatedAt     int64  `json:"updated_at"`
}

type ListOpts struct {
	CreatedBy string
	Limit     int
	Offset    int
}

type AttemptListOpts struct {
	TestID  string
	Student string // external id
	Status  string
	Limit   int
	Offset  int
}

// Store persists tests, attempts and results. GetTestStudent is the
// answer-stripped view served behind share links.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error)
	GetTestStudent(ctx context.Context, id string) (Test, error)
	DeleteTest(ctx context.Context, id string) error
	ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error)

	PutAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// PutResult stores a result exactly once; a second write for the same
	// attempt is a no-op so replayed finalization can never overwrite it.
	PutResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, attemptID string) (Result, error)
}
