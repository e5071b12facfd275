package grader

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"autograder/internal/qa"
)

// CodeQualityResult holds style signals for assignment.py.
type CodeQualityResult struct {
	Error string `json:"error,omitempty"`

	PEP8Violations int    `json:"pep8_violations"`
	PEP8Pass       bool   `json:"pep8_pass"`
	PEP8Error      string `json:"pep8_error,omitempty"`

	HasTypeHints   bool `json:"has_type_hints"`
	HasDocstrings  bool `json:"has_docstrings"`
	DocstringCount int  `json:"docstring_count"`
	HasFunctions   bool `json:"has_functions"`
	FunctionCount  int  `json:"function_count"`
	HasComments    bool `json:"has_comments"`
	CommentCount   int  `json:"comment_count"`
	ImportCount    int  `json:"import_count"`
	CodeLines      int  `json:"code_lines"`
	CodeLengthOK   bool `json:"code_length_ok"`
}

const (
	minDocstrings = 4
	minFunctions  = 3
	minCodeLines  = 50
	maxCodeLines  = 150
)

func (g *Grader) checkCodeQuality(ctx context.Context, content string, ok bool) CodeQualityResult {
	if !ok {
		return CodeQualityResult{Error: "Assignment file not found"}
	}
	r := analyzeSource(content)
	g.runLint(ctx, &r)
	return r
}

// analyzeSource computes the text-only signals.
func analyzeSource(content string) CodeQualityResult {
	var r CodeQualityResult

	r.HasTypeHints = strings.Contains(content, " -> ") && !strings.Contains(content, ":=")

	r.DocstringCount = strings.Count(content, tripleDouble)
	r.HasDocstrings = r.DocstringCount >= minDocstrings

	r.FunctionCount = strings.Count(content, "def ")
	r.HasFunctions = r.FunctionCount >= minFunctions

	r.CommentCount = commentLines(content)
	r.HasComments = r.CommentCount > 0

	r.ImportCount = strings.Count(content, "import ")

	for _, l := range lines(content) {
		t := strings.TrimSpace(l)
		if t != "" && !strings.HasPrefix(t, "#") {
			r.CodeLines++
		}
	}
	r.CodeLengthOK = r.CodeLines >= minCodeLines && r.CodeLines <= maxCodeLines
	return r
}

func (g *Grader) runLint(ctx context.Context, r *CodeQualityResult) {
	cmd, err := qa.BuildCommand(g.opts.LintCommand, AssignmentFile, g.dir, g.opts.LintTimeout)
	if err != nil {
		r.PEP8Error = err.Error()
		return
	}
	res, err := g.opts.Runner.Run(ctx, cmd)
	if err != nil {
		g.log.Warn("lint check failed", zap.String("cmd", cmd.String()), zap.Error(err))
		r.PEP8Error = err.Error()
		return
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		r.PEP8Violations = len(strings.Split(out, "\n"))
	}
	r.PEP8Pass = res.ExitCode == 0
}
