package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("submission not found")
	// ErrNotQueued is returned when a submission is not in a state the transition accepts.
	ErrNotQueued = errors.New("submission is not queued")
)

const submissionColumns = `id, submission_dir, variant, status, overall_score, report, report_ref, error, created_at, updated_at`

// Store persists submissions. Queries use $N placeholders, accepted by both pgx and sqlite.
type Store struct {
	DB *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) Create(ctx context.Context, dir string, variant int) (*Submission, error) {
	now := time.Now().UTC()
	sub := &Submission{
		ID:            uuid.NewString(),
		SubmissionDir: dir,
		Variant:       variant,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.DB.ExecContext(ctx,
		`insert into submissions(id, submission_dir, variant, status, created_at, updated_at) values($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.SubmissionDir, sub.Variant, sub.Status, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Submission, error) {
	return get(ctx, s.DB, id)
}

// List returns the most recent submissions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	out := make([]Submission, 0)
	err := s.DB.SelectContext(ctx, &out,
		`select `+submissionColumns+` from submissions order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}

// Claim moves a queued submission to running and returns it.
func (s *Store) Claim(ctx context.Context, id string) (*Submission, error) {
	var sub *Submission
	err := WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		sub, err = get(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.Status != StatusQueued {
			return fmt.Errorf("%w (status %s)", ErrNotQueued, sub.Status)
		}
		sub.Status = StatusRunning
		sub.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `update submissions set status=$1, updated_at=$2 where id=$3`,
			sub.Status, sub.UpdatedAt, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Requeue resets a finished submission so it can be graded again. A running
// submission is reclaimed only once it has not been updated for staleAfter,
// which covers workers that died mid-grade.
func (s *Store) Requeue(ctx context.Context, id string, staleAfter time.Duration) error {
	return WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		sub, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case sub.Status == StatusGraded, sub.Status == StatusFailed:
		case sub.Status == StatusRunning && staleAfter > 0 && time.Since(sub.UpdatedAt) > staleAfter:
		default:
			return fmt.Errorf("%w (status %s)", ErrNotQueued, sub.Status)
		}
		_, err = tx.ExecContext(ctx,
			`update submissions set status=$1, error=null, updated_at=$2 where id=$3`,
			StatusQueued, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("requeue submission: %w", err)
		}
		return nil
	})
}

func (s *Store) MarkGraded(ctx context.Context, id string, score float64, report []byte, ref string) error {
	var refVal sql.NullString
	if ref != "" {
		refVal = sql.NullString{String: ref, Valid: true}
	}
	return s.update(ctx,
		`update submissions set status=$1, overall_score=$2, report=$3, report_ref=$4, error=null, updated_at=$5 where id=$6`,
		StatusGraded, score, report, refVal, time.Now().UTC(), id)
}

func (s *Store) MarkFailed(ctx context.Context, id, msg string) error {
	return s.update(ctx,
		`update submissions set status=$1, error=$2, updated_at=$3 where id=$4`,
		StatusFailed, msg, time.Now().UTC(), id)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func get(ctx context.Context, q sqlx.QueryerContext, id string) (*Submission, error) {
	var sub Submission
	err := sqlx.GetContext(ctx, q, &sub, `select `+submissionColumns+` from submissions where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}
