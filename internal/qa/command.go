package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
)

// ErrTimeout is returned when a command does not finish before its timeout.
var ErrTimeout = errors.New("command timed out")

// Command is one external process invocation. Dir is the submission
// directory; Args may refer to files in it by relative name.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result of a finished command. A nonzero exit is reported here, not as an error.
type Result struct {
	OK       bool   `json:"ok"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// Runner runs a single command and blocks until it exits or times out.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// BuildCommand expands a template such as "flake8 {file} --max-line-length=100"
// and splits it shell-style.
func BuildCommand(tpl, file, dir string, timeout time.Duration) (Command, error) {
	if strings.TrimSpace(tpl) == "" {
		return Command{}, errors.New("command template is required")
	}
	expanded := strings.ReplaceAll(tpl, "{file}", file)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return Command{}, fmt.Errorf("parse command template %q: %w", tpl, err)
	}
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("command %q is empty after expansion", tpl)
	}
	return Command{Name: fields[0], Args: fields[1:], Dir: dir, Timeout: timeout}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
