// Package grader inspects a submission directory and scores it against the
// rubric. Analyzers never fail: problems are recorded in the report.
package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"autograder/internal/qa"
	"autograder/internal/rubric"
)

// Submission file names.
const (
	AssignmentFile = "assignment.py"
	ReadmeFile     = "README.md"
	TestFile       = "test.py"
	ReportFile     = "grading_report.json"
)

// Default external commands; {file} is replaced with a path relative to the submission.
const (
	DefaultLintCommand = "flake8 {file} --max-line-length=100"
	DefaultTestCommand = "python -m pytest {file} -v"
	DefaultLintTimeout = 10 * time.Second
	DefaultTestTimeout = 30 * time.Second
)

// Options configures a Grader. Zero values fall back to the defaults above.
type Options struct {
	Runner      qa.Runner
	LintCommand string
	TestCommand string
	LintTimeout time.Duration
	TestTimeout time.Duration
	Log         *zap.Logger
}

// Report is the result of one grading run.
type Report struct {
	Variant           int                     `json:"variant"`
	FilesCheck        map[string]bool         `json:"files_check"`
	CodeQuality       CodeQualityResult       `json:"code_quality"`
	DatasetValidation DatasetValidationResult `json:"dataset_validation"`
	Documentation     DocumentationResult     `json:"documentation"`
	UnitTests         UnitTestsResult         `json:"unit_tests"`
	OutputFormat      OutputFormatResult      `json:"output_format"`
	CategoryScores    map[string]float64      `json:"category_scores"`
	OverallScore      float64                 `json:"overall_score"`
}

// Grader grades one submission directory for one variant.
type Grader struct {
	dir     string
	variant int
	config  rubric.VariantConfig
	opts    Options
	log     *zap.Logger
}

func New(dir string, variant int, opts Options) *Grader {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Runner == nil {
		opts.Runner = qa.NewExecRunner(opts.Log)
	}
	if opts.LintCommand == "" {
		opts.LintCommand = DefaultLintCommand
	}
	if opts.TestCommand == "" {
		opts.TestCommand = DefaultTestCommand
	}
	if opts.LintTimeout <= 0 {
		opts.LintTimeout = DefaultLintTimeout
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = DefaultTestTimeout
	}
	log := opts.Log.With(zap.String("submission", dir), zap.Int("variant", variant))

	cfg, ok := rubric.Lookup(variant)
	if !ok {
		log.Warn("unknown variant, using default configuration")
	}
	return &Grader{dir: dir, variant: variant, config: cfg, opts: opts, log: log}
}

// Grade runs every analyzer once and scores the results.
func (g *Grader) Grade(ctx context.Context) Report {
	assignment, assignmentOK := g.readFile(AssignmentFile)

	r := Report{
		Variant:           g.variant,
		FilesCheck:        checkFiles(g.dir, g.config),
		CodeQuality:       g.checkCodeQuality(ctx, assignment, assignmentOK),
		DatasetValidation: checkDatasetValidation(assignment, assignmentOK, g.config),
		Documentation:     checkDocumentation(g.dir, assignment, assignmentOK),
		UnitTests:         g.checkUnitTests(ctx),
		OutputFormat:      checkOutputFormat(g.dir, g.config),
	}
	r.CategoryScores = map[string]float64{
		rubric.CodeQuality:       clamp(scoreCodeQuality(r.CodeQuality)),
		rubric.DatasetValidation: clamp(scoreDatasetValidation(r.DatasetValidation)),
		rubric.Documentation:     clamp(scoreDocumentation(r.Documentation)),
		rubric.UnitTests:         clamp(scoreUnitTests(r.UnitTests)),
		rubric.Functionality:     clamp(scoreFunctionality(r.OutputFormat)),
	}
	r.OverallScore = Overall(r.CategoryScores)

	g.log.Info("graded submission",
		zap.Float64("overall_score", r.OverallScore),
		zap.Any("category_scores", r.CategoryScores))
	return r
}

// Overall combines category scores by rubric weight, rounded to two decimals.
func Overall(scores map[string]float64) float64 {
	total := 0.0
	for _, c := range rubric.Categories() {
		total += clamp(scores[c.Name]) * float64(c.Weight)
	}
	total /= float64(rubric.TotalWeight())
	return round2(clamp(total))
}

// Save writes the report as indented JSON to path.
func Save(r Report, path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (g *Grader) path(name string) string {
	return filepath.Join(g.dir, name)
}

func (g *Grader) readFile(name string) (string, bool) {
	b, err := os.ReadFile(g.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			g.log.Warn("read submission file", zap.String("file", name), zap.Error(err))
		}
		return "", false
	}
	return string(b), true
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
