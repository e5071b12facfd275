// Command grade scores one submission directory against a rubric variant.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"autograder/internal/config"
	"autograder/internal/grader"
	"autograder/internal/logging"
	"autograder/internal/qa"
	"autograder/internal/rubric"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("grade", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: grade [flags] <submission_dir> <variant:1-10>")
		fs.PrintDefaults()
	}
	cfg := config.Load()
	dockerImage := fs.String("docker-image", cfg.DockerImage, "run lint and tests inside this image")
	python := fs.String("python", "", "python interpreter used for pytest (overrides GRADER_TEST_CMD)")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	dir, variant, err := parseArgs(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		fs.Usage()
		return 1
	}

	log, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	opts := graderOptions(cfg, *python)
	opts.Log = log
	if *dockerImage != "" {
		dr, err := qa.NewDockerRunner(ctx, *dockerImage, log)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		defer dr.Close()
		opts.Runner = dr
	}

	report := grader.New(dir, variant, opts).Grade(ctx)

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintln(stdout, string(b))

	path := filepath.Join(dir, grader.ReportFile)
	if err := grader.Save(report, path); err != nil {
		log.Error("save report", zap.String("path", path), zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintf(stdout, "\nReport saved to: %s\n", path)
	fmt.Fprintf(stdout, "Overall Score: %.2f/1.0\n", report.OverallScore)
	return 0
}

// graderOptions takes the commands from the environment; a -python flag
// replaces the test command.
func graderOptions(cfg config.Config, python string) grader.Options {
	opts := cfg.GraderOptions()
	if python != "" {
		opts.TestCommand = config.TestCommandFor(python)
	}
	return opts
}

// parseArgs validates <submission_dir> <variant>.
func parseArgs(args []string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, errors.New("expected <submission_dir> <variant>")
	}
	dir := args[0]
	variant, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("variant must be an integer, got %q", args[1])
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return "", 0, fmt.Errorf("directory %s does not exist", dir)
	}
	if !rubric.ValidVariant(variant) {
		return "", 0, fmt.Errorf("variant must be between %d and %d, got %d", rubric.MinVariant, rubric.MaxVariant, variant)
	}
	return dir, variant, nil
}
