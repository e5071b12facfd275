package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, e.g. when a grandchild still holds them open.
const waitDelay = 2 * time.Second

// ExecRunner runs commands as local processes.
type ExecRunner struct {
	Log *zap.Logger
}

func NewExecRunner(log *zap.Logger) *ExecRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{Log: log}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	runCtx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Log.Debug("exec runner: starting", zap.String("cmd", c.String()), zap.String("dir", c.Dir))
	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w after %s", c.String(), ErrTimeout, c.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.String(), err)
	}
	res.OK = true
	return res, nil
}
