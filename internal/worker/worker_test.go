package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autograder/internal/cache"
	"autograder/internal/db"
	"autograder/internal/grader"
	"autograder/internal/qa"
	"autograder/internal/schemas"
)

type passRunner struct{}

func (passRunner) Run(context.Context, qa.Command) (*qa.Result, error) {
	return &qa.Result{OK: true}, nil
}

// cancelRunner cancels the task context the first time a tool runs.
type cancelRunner struct {
	cancel context.CancelFunc
}

func (r cancelRunner) Run(ctx context.Context, _ qa.Command) (*qa.Result, error) {
	r.cancel()
	return &qa.Result{ExitCode: -1}, ctx.Err()
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) PutReport(_ context.Context, id string, report []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	ref := "s3://grading-reports/reports/" + id + "/r.json"
	a.objects[ref] = report
	return ref, nil
}

type fixture struct {
	srv     *Server
	archive *memArchive
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbx, err := db.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := &memArchive{objects: map[string][]byte{}}
	return &fixture{
		srv: &Server{
			Store:   db.NewStore(dbx),
			Grader:  grader.Options{Runner: passRunner{}},
			Archive: a,
			Cache:   cache.NewReports(rdb, time.Hour),
		},
		archive: a,
		mr:      mr,
	}
}

func gradeTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(schemas.GradeTaskPayload{SubmissionID: id})
	require.NoError(t, err)
	return asynq.NewTask(schemas.GradeTaskType, b)
}

func submissionDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := "\"\"\"Iris analysis.\"\"\"\nfrom datasets import load_dataset\n\n" +
		"def load_iris_dataset():\n    \"\"\"Load.\"\"\"\n    return load_dataset('scikit-learn/iris')\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, grader.AssignmentFile), []byte(src), 0o644))
	return dir
}

func TestHandleGradeStoresReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.srv.Store.Create(ctx, submissionDir(t), 8)
	require.NoError(t, err)

	require.NoError(t, f.srv.HandleGrade(ctx, gradeTask(t, sub.ID)))

	got, err := f.srv.Store.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusGraded, got.Status)
	require.True(t, got.OverallScore.Valid)

	var report grader.Report
	require.NoError(t, json.Unmarshal(got.Report, &report))
	assert.Equal(t, 8, report.Variant)
	assert.Equal(t, got.OverallScore.Float64, report.OverallScore)
	assert.True(t, report.FilesCheck[grader.AssignmentFile])

	require.True(t, got.ReportRef.Valid)
	assert.JSONEq(t, string(got.Report), string(f.archive.objects[got.ReportRef.String]))

	cached, err := f.mr.Get("grading:report:" + sub.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(got.Report), cached)
}

func TestHandleGradeArchiveFailureStillGrades(t *testing.T) {
	f := newFixture(t)
	f.archive.err = errors.New("minio down")
	ctx := context.Background()
	sub, err := f.srv.Store.Create(ctx, submissionDir(t), 8)
	require.NoError(t, err)

	require.NoError(t, f.srv.HandleGrade(ctx, gradeTask(t, sub.ID)))

	got, err := f.srv.Store.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusGraded, got.Status)
	assert.False(t, got.ReportRef.Valid)
	assert.NotEmpty(t, got.Report)
}

func TestHandleGradeMissingDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.srv.Store.Create(ctx, filepath.Join(t.TempDir(), "nope"), 1)
	require.NoError(t, err)

	require.NoError(t, f.srv.HandleGrade(ctx, gradeTask(t, sub.ID)))

	got, err := f.srv.Store.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, got.Status)
	assert.Contains(t, got.Error.String, "submission directory not found")
	assert.Empty(t, f.archive.objects)
}

func TestHandleGradeSkipsClaimedAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.srv.Store.Create(ctx, submissionDir(t), 8)
	require.NoError(t, err)
	_, err = f.srv.Store.Claim(ctx, sub.ID)
	require.NoError(t, err)

	assert.NoError(t, f.srv.HandleGrade(ctx, gradeTask(t, sub.ID)))
	assert.NoError(t, f.srv.HandleGrade(ctx, gradeTask(t, "missing")))

	got, err := f.srv.Store.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusRunning, got.Status)
}

func TestHandleGradeBadPayload(t *testing.T) {
	f := newFixture(t)
	err := f.srv.HandleGrade(context.Background(), asynq.NewTask(schemas.GradeTaskType, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleGradeCancelledMarksFailed(t *testing.T) {
	f := newFixture(t)
	sub, err := f.srv.Store.Create(context.Background(), submissionDir(t), 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.srv.Grader.Runner = cancelRunner{cancel: cancel}

	err = f.srv.HandleGrade(ctx, gradeTask(t, sub.ID))
	assert.ErrorIs(t, err, context.Canceled)

	got, err := f.srv.Store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, got.Status)
	assert.Contains(t, got.Error.String, "grading interrupted")
	assert.Empty(t, f.archive.objects)

	require.NoError(t, f.srv.Store.Requeue(context.Background(), sub.ID, time.Minute), "failed rows can be regraded")
}
