package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"autograder/internal/grader"
	"autograder/internal/logging"
	"autograder/internal/schemas"
)

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token for submission endpoints")
	dirFlag := flag.String("dir", "", "submission directory, as seen by the worker")
	variantFlag := flag.Int("variant", 1, "assignment variant (1-10)")
	wait := flag.Duration("wait", 2*time.Minute, "how long to poll for the grading result")
	local := flag.Bool("local", false, "grade -dir in-process without the API")
	flag.Parse()

	if *dirFlag == "" {
		fatalf("-dir is required")
	}
	if *local {
		gradeLocally(*dirFlag, *variantFlag)
		return
	}

	httpc := &http.Client{Timeout: 12 * time.Second}

	// 1) Health
	var health map[string]string
	if err := getJSON(httpc, *baseFlag+"/healthz", "", &health); err != nil {
		fatalf("healthz: %v", err)
	}
	fmt.Printf("✅ API healthy: %v\n", health)

	// 2) Submit
	abs, err := filepath.Abs(*dirFlag)
	if err != nil {
		fatalf("resolve dir: %v", err)
	}
	var created schemas.SubmitResponse
	req := schemas.SubmitRequest{SubmissionDir: abs, Variant: *variantFlag}
	if err := postJSON(httpc, *baseFlag+"/submissions", *tokenFlag, req, &created); err != nil {
		fatalf("submit: %v", err)
	}
	fmt.Printf("✅ Queued submission: id=%s status=%s\n", created.SubmissionID, created.Status)

	// 3) Poll until graded or failed
	deadline := time.Now().Add(*wait)
	var sub schemas.SubmissionOut
	for {
		if err := getJSON(httpc, fmt.Sprintf("%s/submissions/%s", *baseFlag, created.SubmissionID), *tokenFlag, &sub); err != nil {
			fatalf("get submission: %v", err)
		}
		if sub.Status == "graded" || sub.Status == "failed" {
			break
		}
		if time.Now().After(deadline) {
			fatalf("submission still %s after %s", sub.Status, *wait)
		}
		time.Sleep(2 * time.Second)
	}
	if sub.Status == "failed" {
		fatalf("grading failed: %s", sub.Error)
	}

	// 4) Report
	var report grader.Report
	if err := getJSON(httpc, fmt.Sprintf("%s/submissions/%s/report", *baseFlag, created.SubmissionID), *tokenFlag, &report); err != nil {
		fatalf("get report: %v", err)
	}
	fmt.Printf("✅ Category scores:\n%s\n", compactJSON(report.CategoryScores))
	fmt.Printf("🎉 Smoke run OK. Overall Score: %.2f/1.0\n", report.OverallScore)
}

// gradeLocally grades dir with the local toolchain and prints the report.
func gradeLocally(dir string, variant int) {
	log := logging.MustNew(logging.Config{Level: "info", Format: "console"})
	defer func() { _ = log.Sync() }()

	fmt.Printf("🧪 Grading %s (variant %d) in-process...\n", dir, variant)
	report := grader.New(dir, variant, grader.Options{Log: log}).Grade(context.Background())

	fmt.Printf("\n📊 Results:\n")
	fmt.Printf("  files:            %v\n", report.FilesCheck)
	fmt.Printf("  pep8 pass:        %t (%d violations)\n", report.CodeQuality.PEP8Pass, report.CodeQuality.PEP8Violations)
	fmt.Printf("  tests pass:       %t\n", report.UnitTests.TestsPass)
	fmt.Printf("  readme coverage:  %.2f\n", report.Documentation.Readme.SectionsCoverage)
	fmt.Printf("  category scores:\n%s\n", compactJSON(report.CategoryScores))
	fmt.Printf("🎯 Overall Score: %.2f/1.0\n", report.OverallScore)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func compactJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
