// Package config reads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"autograder/internal/grader"
	"autograder/internal/logging"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	RedisAddr   string

	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string

	APIAddr          string
	APIToken         string
	CORSOrigins      []string
	SubmitRatePerMin int

	LintCommand string
	TestCommand string
	DockerImage string

	WorkerConcurrency int
	ReportCacheTTL    time.Duration

	Log logging.Config
}

// Load reads the environment, applying defaults for anything unset.
func Load() Config {
	return Config{
		DBDriver:    envOr("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioBucket:    envOr("MINIO_BUCKET", "grading-reports"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),

		APIAddr:          envOr("API_ADDR", ":8000"),
		APIToken:         os.Getenv("API_TOKEN"),
		CORSOrigins:      envList("CORS_ORIGINS"),
		SubmitRatePerMin: envInt("SUBMIT_RATE_PER_MIN", 60),

		LintCommand: envOr("GRADER_LINT_CMD", grader.DefaultLintCommand),
		TestCommand: envOr("GRADER_TEST_CMD", TestCommandFor(os.Getenv("GRADER_PYTHON"))),
		DockerImage: os.Getenv("GRADER_DOCKER_IMAGE"),

		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 5),
		ReportCacheTTL:    envDuration("REPORT_CACHE_TTL", 24*time.Hour),

		Log: logging.Config{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "console"),
		},
	}
}

// TestCommandFor returns the pytest command using the given interpreter.
func TestCommandFor(python string) string {
	if python == "" {
		return grader.DefaultTestCommand
	}
	return python + " -m pytest {file} -v"
}

// GraderOptions maps the grader settings onto grader.Options.
func (c Config) GraderOptions() grader.Options {
	return grader.Options{
		LintCommand: c.LintCommand,
		TestCommand: c.TestCommand,
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// envList splits a comma-separated variable, dropping empty items.
func envList(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
