package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autograder/internal/qa"
	"autograder/internal/rubric"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []qa.Command
	results map[string]*qa.Result
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]*qa.Result{
			"flake8": {OK: true},
			"python": {OK: true, Stdout: "2 passed"},
		},
		errs: map[string]error{},
	}
}

func (f *fakeRunner) Run(_ context.Context, c qa.Command) (*qa.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	res := f.results[c.Name]
	if res == nil {
		res = &qa.Result{OK: true}
	}
	cp := *res
	return &cp, f.errs[c.Name]
}

func (f *fakeRunner) called(name string) (qa.Command, bool) {
	for _, c := range f.calls {
		if c.Name == name {
			return c, true
		}
	}
	return qa.Command{}, false
}

func assignmentSource(dataset string, functions ...string) string {
	var b strings.Builder
	b.WriteString(`"""Dataset statistics assignment."""` + "\n")
	b.WriteString("# -*- coding: utf-8 -*-\n")
	b.WriteString("import json\n")
	b.WriteString("from datasets import load_dataset\n\n")
	fmt.Fprintf(&b, "DATASET = %q\n\n", dataset)
	for _, fn := range functions {
		fmt.Fprintf(&b, "def %s(data: list) -> dict:\n", fn)
		b.WriteString(`    """Compute ` + fn + ".\n\n")
		b.WriteString("    Args:\n        data: input rows.\n\n")
		b.WriteString("    Returns:\n        dict result.\n")
		b.WriteString(`    """` + "\n")
		b.WriteString("    # compute\n")
		b.WriteString("    result = {}\n")
		b.WriteString("    for row in data:\n")
		b.WriteString("        result[row] = 1\n")
		b.WriteString("    return result\n\n")
	}
	return b.String()
}

func readmeSource() string {
	var b strings.Builder
	b.WriteString("# AG News\n\n")
	for _, s := range rubric.Readme().Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		b.WriteString("- Some **important** details about this part of the assignment.\n\n")
	}
	b.WriteString("```bash\npip install -r requirements.txt\n```\n\n")
	b.WriteString("```bash\npython assignment.py\n```\n")
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writePNG(t *testing.T, dir, name string) {
	t.Helper()
	writeFile(t, dir, name, string(pngSignature)+"rest-of-image")
}

// fullSubmission writes a submission for variant 2 that earns full credit.
func fullSubmission(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := rubric.Get(2)
	writeFile(t, dir, AssignmentFile, assignmentSource("ag_news", append(cfg.RequiredFunctions, "main")...))
	writeFile(t, dir, ReadmeFile, readmeSource())
	writeFile(t, dir, TestFile, "def test_ok():\n    assert True\n")
	writeFile(t, dir, "ag_news_results.json", `{"dataset": "ag_news", "statistics": {}, "results": {}}`)
	writePNG(t, dir, "visualization.png")
	return dir
}

func TestGradeFullSubmission(t *testing.T) {
	dir := fullSubmission(t)
	runner := newFakeRunner()

	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.Equal(t, 2, r.Variant)
	for name, ok := range r.FilesCheck {
		assert.True(t, ok, name)
	}
	for _, c := range rubric.Categories() {
		assert.InDelta(t, 1.0, r.CategoryScores[c.Name], 1e-9, c.Name)
	}
	assert.Equal(t, 1.0, r.OverallScore)

	lint, ok := runner.called("flake8")
	require.True(t, ok)
	assert.Equal(t, []string{"assignment.py", "--max-line-length=100"}, lint.Args)
	assert.Equal(t, dir, lint.Dir)
	assert.Equal(t, DefaultLintTimeout, lint.Timeout)

	tests, ok := runner.called("python")
	require.True(t, ok)
	assert.Equal(t, []string{"-m", "pytest", "test.py", "-v"}, tests.Args)
	assert.Equal(t, dir, tests.Dir)
	assert.Equal(t, DefaultTestTimeout, tests.Timeout)
	assert.Len(t, runner.calls, 2)
}

func TestGradeEmptySubmission(t *testing.T) {
	runner := newFakeRunner()
	r := New(t.TempDir(), 2, Options{Runner: runner}).Grade(context.Background())

	assert.Equal(t, 0.0, r.CategoryScores[rubric.CodeQuality])
	assert.Equal(t, 0.0, r.CategoryScores[rubric.DatasetValidation])
	assert.Equal(t, 0.0, r.CategoryScores[rubric.UnitTests])
	assert.LessOrEqual(t, r.CategoryScores[rubric.Functionality], 0.2)
	assert.InDelta(t, 1.7/9, r.CategoryScores[rubric.Documentation], 1e-9)
	assert.Less(t, r.OverallScore, 0.5)
	assert.Equal(t, 0.08, r.OverallScore)
	assert.Empty(t, runner.calls, "no external tools run without files")

	assert.Equal(t, "Assignment file not found", r.CodeQuality.Error)
	assert.False(t, r.UnitTests.TestFileExists)
	assert.False(t, r.Documentation.Readme.Exists)
}

func TestGradeMissingOutputsAndTests(t *testing.T) {
	dir := fullSubmission(t)
	require.NoError(t, os.Remove(filepath.Join(dir, TestFile)))
	require.NoError(t, os.Remove(filepath.Join(dir, "ag_news_results.json")))
	require.NoError(t, os.Remove(filepath.Join(dir, "visualization.png")))

	runner := newFakeRunner()
	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.Equal(t, 0.0, r.CategoryScores[rubric.UnitTests])
	assert.LessOrEqual(t, r.CategoryScores[rubric.Functionality], 0.2)
	assert.InDelta(t, 0.15, r.CategoryScores[rubric.Functionality], 1e-9)
	assert.Less(t, r.OverallScore, 0.75)
	_, ran := runner.called("python")
	assert.False(t, ran)
}

func TestGradeLintTimeoutGivesPartialCredit(t *testing.T) {
	dir := fullSubmission(t)
	runner := newFakeRunner()
	runner.results["flake8"] = &qa.Result{TimedOut: true, ExitCode: -1}
	runner.errs["flake8"] = fmt.Errorf("flake8: %w", qa.ErrTimeout)

	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.False(t, r.CodeQuality.PEP8Pass)
	assert.Contains(t, r.CodeQuality.PEP8Error, "timed out")
	assert.InDelta(t, (0.5+1+1+1)/4, r.CategoryScores[rubric.CodeQuality], 1e-9)
}

func TestGradeLintViolations(t *testing.T) {
	dir := fullSubmission(t)
	runner := newFakeRunner()
	runner.results["flake8"] = &qa.Result{
		ExitCode: 1,
		Stdout:   "assignment.py:1:1: E1\nassignment.py:2:1: E2\nassignment.py:3:1: E3\n",
	}

	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.Equal(t, 3, r.CodeQuality.PEP8Violations)
	assert.False(t, r.CodeQuality.PEP8Pass)
	assert.InDelta(t, (0.7+1+1+1)/4, r.CategoryScores[rubric.CodeQuality], 1e-9)
}

func TestGradeFailingTests(t *testing.T) {
	dir := fullSubmission(t)
	runner := newFakeRunner()
	runner.results["python"] = &qa.Result{ExitCode: 1, Stdout: "1 failed"}

	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.True(t, r.UnitTests.TestFileExists)
	assert.False(t, r.UnitTests.TestsPass)
	require.NotNil(t, r.UnitTests.ExitCode)
	assert.Equal(t, 1, *r.UnitTests.ExitCode)
	assert.Equal(t, 0.3, r.CategoryScores[rubric.UnitTests])
}

func TestGradeTestRunnerError(t *testing.T) {
	dir := fullSubmission(t)
	runner := newFakeRunner()
	runner.results["python"] = nil
	runner.errs["python"] = fmt.Errorf("python: executable file not found in $PATH")

	r := New(dir, 2, Options{Runner: runner}).Grade(context.Background())

	assert.NotEmpty(t, r.UnitTests.TestError)
	assert.Equal(t, 0.3, r.CategoryScores[rubric.UnitTests])
}

func TestMissingReadmeScoresLower(t *testing.T) {
	with := fullSubmission(t)
	without := fullSubmission(t)
	require.NoError(t, os.Remove(filepath.Join(without, ReadmeFile)))

	a := New(with, 2, Options{Runner: newFakeRunner()}).Grade(context.Background())
	b := New(without, 2, Options{Runner: newFakeRunner()}).Grade(context.Background())

	assert.Less(t, b.CategoryScores[rubric.Documentation], a.CategoryScores[rubric.Documentation])
	assert.Equal(t, "README.md not found", b.Documentation.Readme.Error)
}

func TestGradeUnknownVariantUsesDefaults(t *testing.T) {
	dir := fullSubmission(t)
	writeFile(t, dir, "results.json", `[1, 2, 3]`)

	r := New(dir, 42, Options{Runner: newFakeRunner()}).Grade(context.Background())

	assert.Equal(t, 42, r.Variant)
	assert.Contains(t, r.OutputFormat.Artifacts, "results.json")
	assert.Contains(t, r.OutputFormat.Artifacts, "visualization.png")
	assert.True(t, r.OutputFormat.ResultsJSONValid)
	assert.True(t, r.OutputFormat.VisualizationPNGExists)
	assert.False(t, r.DatasetValidation.DatasetLoading)
	assert.Len(t, r.FilesCheck, 3)
}

func TestGradeInvalidJSON(t *testing.T) {
	dir := fullSubmission(t)
	writeFile(t, dir, "ag_news_results.json", `{"dataset": `)

	r := New(dir, 2, Options{Runner: newFakeRunner()}).Grade(context.Background())

	assert.False(t, r.OutputFormat.ResultsJSONValid)
	a := r.OutputFormat.Artifacts["ag_news_results.json"]
	assert.True(t, a.Exists)
	assert.False(t, a.Valid)
	assert.NotEmpty(t, a.Error)
	assert.InDelta(t, (0.1+1)/2, r.CategoryScores[rubric.Functionality], 1e-9)
}

func TestOverallBounds(t *testing.T) {
	values := []float64{-1, 0, 0.15, 0.5, 1, 2}
	for _, v := range values {
		for _, w := range values {
			scores := map[string]float64{
				rubric.CodeQuality:       v,
				rubric.DatasetValidation: w,
				rubric.Documentation:     v,
				rubric.UnitTests:         w,
				rubric.Functionality:     v,
			}
			o := Overall(scores)
			assert.GreaterOrEqual(t, o, 0.0)
			assert.LessOrEqual(t, o, 1.0)
		}
	}
	assert.Equal(t, 0.0, Overall(nil))
}

func TestOverallWeighting(t *testing.T) {
	o := Overall(map[string]float64{rubric.Functionality: 1})
	assert.Equal(t, 0.35, o)

	o = Overall(map[string]float64{rubric.CodeQuality: 0.5, rubric.UnitTests: 1})
	assert.Equal(t, 0.25, o)
}

func TestSaveReport(t *testing.T) {
	dir := fullSubmission(t)
	r := New(dir, 2, Options{Runner: newFakeRunner()}).Grade(context.Background())

	path := filepath.Join(dir, ReportFile)
	require.NoError(t, Save(r, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	for _, key := range []string{"variant", "files_check", "code_quality", "dataset_validation", "documentation", "unit_tests", "output_format", "overall_score"} {
		assert.Contains(t, doc, key)
	}
	assert.EqualValues(t, 2, doc["variant"])
	assert.EqualValues(t, 1, doc["overall_score"])
}

func TestNewAppliesDefaults(t *testing.T) {
	g := New(t.TempDir(), 1, Options{})
	assert.Equal(t, DefaultLintCommand, g.opts.LintCommand)
	assert.Equal(t, DefaultTestCommand, g.opts.TestCommand)
	assert.Equal(t, 10*time.Second, g.opts.LintTimeout)
	assert.Equal(t, 30*time.Second, g.opts.TestTimeout)
	assert.NotNil(t, g.opts.Runner)
	assert.Equal(t, 1, g.config.ID)
}
