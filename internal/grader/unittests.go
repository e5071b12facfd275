package grader

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"autograder/internal/qa"
)

// UnitTestsResult records whether the submission's own tests pass.
type UnitTestsResult struct {
	TestFileExists bool   `json:"test_file_exists"`
	TestsPass      bool   `json:"tests_pass"`
	ExitCode       *int   `json:"exit_code,omitempty"`
	TimedOut       bool   `json:"timed_out,omitempty"`
	TestError      string `json:"test_error,omitempty"`
}

func (g *Grader) checkUnitTests(ctx context.Context) UnitTestsResult {
	var r UnitTestsResult
	if !fileExists(filepath.Join(g.dir, TestFile)) {
		return r
	}
	r.TestFileExists = true

	cmd, err := qa.BuildCommand(g.opts.TestCommand, TestFile, g.dir, g.opts.TestTimeout)
	if err != nil {
		r.TestError = err.Error()
		return r
	}
	res, err := g.opts.Runner.Run(ctx, cmd)
	if res != nil {
		code := res.ExitCode
		r.ExitCode = &code
		r.TimedOut = res.TimedOut
	}
	if err != nil {
		g.log.Warn("test run failed", zap.String("cmd", cmd.String()), zap.Error(err))
		r.TestError = err.Error()
		return r
	}
	r.TestsPass = res.ExitCode == 0
	return r
}
