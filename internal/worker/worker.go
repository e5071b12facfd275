// Package worker consumes grading tasks from asynq.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"autograder/internal/db"
	"autograder/internal/grader"
	"autograder/internal/schemas"
)

// ReportArchive is satisfied by *storage.Client.
type ReportArchive interface {
	PutReport(ctx context.Context, submissionID string, report []byte) (string, error)
}

// ReportCache is satisfied by *cache.Reports.
type ReportCache interface {
	Set(ctx context.Context, id string, report []byte) error
}

// Server grades queued submissions. Archive and Cache are optional.
type Server struct {
	Store   *db.Store
	Grader  grader.Options
	Archive ReportArchive
	Cache   ReportCache
	Log     *zap.Logger
}

func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(schemas.GradeTaskType, s.HandleGrade)
	return mux
}

// HandleGrade grades one submission. Failures that a retry cannot fix are
// recorded on the row and reported to asynq as done.
func (s *Server) HandleGrade(ctx context.Context, t *asynq.Task) error {
	log := s.logger()

	var p schemas.GradeTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log = log.With(zap.String("submission_id", p.SubmissionID))

	sub, err := s.Store.Claim(ctx, p.SubmissionID)
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrNotQueued):
		log.Warn("skipping task", zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	// Once claimed, the row must leave running even if ctx is cancelled.
	wctx := context.WithoutCancel(ctx)

	if fi, err := os.Stat(sub.SubmissionDir); err != nil || !fi.IsDir() {
		msg := "submission directory not found: " + sub.SubmissionDir
		log.Warn(msg)
		return s.Store.MarkFailed(wctx, sub.ID, msg)
	}

	opts := s.Grader
	opts.Log = log
	report := grader.New(sub.SubmissionDir, sub.Variant, opts).Grade(ctx)
	if err := ctx.Err(); err != nil {
		s.fail(wctx, log, sub.ID, "grading interrupted: "+err.Error())
		return err
	}

	b, err := json.Marshal(report)
	if err != nil {
		s.fail(wctx, log, sub.ID, "marshal report: "+err.Error())
		return nil
	}

	var ref string
	if s.Archive != nil {
		ref, err = s.Archive.PutReport(ctx, sub.ID, b)
		if err != nil {
			log.Warn("archive report", zap.Error(err))
			ref = ""
		}
	}

	if err := s.Store.MarkGraded(wctx, sub.ID, report.OverallScore, b, ref); err != nil {
		s.fail(wctx, log, sub.ID, "store report: "+err.Error())
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(wctx, sub.ID, b); err != nil {
			log.Warn("cache report", zap.Error(err))
		}
	}
	log.Info("submission graded", zap.Float64("overall_score", report.OverallScore), zap.String("report_ref", ref))
	return nil
}

// fail marks the submission failed; a write error is only logged because the
// caller is already reporting a failure.
func (s *Server) fail(ctx context.Context, log *zap.Logger, id, msg string) {
	log.Warn("grading failed", zap.String("reason", msg))
	if err := s.Store.MarkFailed(ctx, id, msg); err != nil {
		log.Error("mark submission failed", zap.Error(err))
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Run serves grading tasks until the process receives a shutdown signal.
func Run(redisAddr string, concurrency int, s *Server) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Logger:      s.logger().Sugar(),
	})
	return srv.Run(s.Mux())
}
