package grader

import (
	"os"
	"path/filepath"
	"strings"

	"autograder/internal/rubric"
)

// DocumentationResult covers docstrings in assignment.py and the README.
type DocumentationResult struct {
	Error string `json:"error,omitempty"`

	HasModuleDocstring    bool `json:"has_module_docstring"`
	HasFunctionDocstrings bool `json:"has_function_docstrings"`
	FunctionDocstrings    int  `json:"function_docstring_count"`
	TotalFunctions        int  `json:"total_functions"`
	HasDocstringSections  bool `json:"has_docstring_sections"`
	HasInlineComments     bool `json:"has_inline_comments"`

	Readme ReadmeResult `json:"readme"`
}

// ReadmeResult describes README.md structure.
type ReadmeResult struct {
	Error string `json:"error,omitempty"`

	Exists           bool            `json:"readme_exists"`
	Valid            bool            `json:"readme_valid"`
	Size             int64           `json:"readme_size"`
	SectionsFound    map[string]bool `json:"sections_found"`
	SectionsMissing  []string        `json:"sections_missing"`
	SectionsCoverage float64         `json:"sections_coverage"`
	SectionsAdequate bool            `json:"sections_adequate"`
	HasCodeExamples  bool            `json:"has_code_examples"`
	CodeBlockCount   int             `json:"code_block_count"`
	HasLinks         bool            `json:"has_links"`
	HasHeaders       bool            `json:"has_headers"`
	HasLists         bool            `json:"has_lists"`
	HasBold          bool            `json:"has_bold"`
	Score            float64         `json:"readme_score"`
}

// moduleDocstringWindow is how many leading lines may hold the module docstring.
const moduleDocstringWindow = 10

// functionDocstringWindow is how many lines after "def" may open its docstring.
const functionDocstringWindow = 4

func checkDocumentation(dir, content string, ok bool) DocumentationResult {
	var r DocumentationResult
	if !ok {
		r.Error = "Assignment file not found"
	} else {
		analyzeDocstrings(content, &r)
	}
	r.Readme = checkReadme(filepath.Join(dir, ReadmeFile), rubric.Readme())
	return r
}

func analyzeDocstrings(content string, r *DocumentationResult) {
	ls := lines(content)

	for i := 0; i < len(ls) && i < moduleDocstringWindow; i++ {
		if !hasTripleQuote(ls[i]) {
			continue
		}
		if i == 0 || (i <= 2 && strings.HasPrefix(strings.TrimSpace(ls[i]), tripleDouble)) {
			r.HasModuleDocstring = true
			break
		}
	}

	for i, l := range ls {
		if !strings.HasPrefix(strings.TrimSpace(l), "def ") {
			continue
		}
		r.TotalFunctions++
		for j := i + 1; j < len(ls) && j <= i+functionDocstringWindow; j++ {
			if hasTripleQuote(ls[j]) {
				r.FunctionDocstrings++
				break
			}
		}
	}
	r.HasFunctionDocstrings = r.FunctionDocstrings > 0 && r.TotalFunctions > 0 &&
		float64(r.FunctionDocstrings) >= float64(r.TotalFunctions)*0.5

	r.HasDocstringSections = strings.Contains(content, "Args:") || strings.Contains(content, "Returns:")
	r.HasInlineComments = commentLines(content) > 2
}

func checkReadme(path string, req rubric.ReadmeRequirements) ReadmeResult {
	r := ReadmeResult{SectionsFound: map[string]bool{}, SectionsMissing: []string{}}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		r.Error = "README.md not found"
		return r
	}
	r.Exists = true
	r.Size = info.Size()

	b, err := os.ReadFile(path)
	if err != nil {
		r.Error = "Cannot read README: " + err.Error()
		return r
	}
	content := string(b)

	found := 0
	for _, s := range req.Sections {
		if sectionPresent(content, s) {
			r.SectionsFound[s.Title] = true
			found++
		} else {
			r.SectionsFound[s.Title] = false
			r.SectionsMissing = append(r.SectionsMissing, s.Title)
		}
	}
	coverage := 0.0
	if len(req.Sections) > 0 {
		coverage = float64(found) / float64(len(req.Sections))
	}
	r.SectionsCoverage = round2(coverage)
	r.SectionsAdequate = coverage >= req.RequiredSectionsPercent

	r.HasCodeExamples = strings.Contains(content, "```")
	r.CodeBlockCount = strings.Count(content, "```") / 2
	r.HasLinks = strings.Contains(content, "[") && strings.Contains(content, "](")
	r.HasHeaders = strings.Contains(content, "#")
	r.HasLists = strings.Contains(content, "-") || strings.Contains(content, "*") || strings.Contains(content, "1.")
	r.HasBold = strings.Contains(content, "**") || strings.Contains(content, "__")

	r.Score = readmeScore(r, coverage, req.MinLength)
	r.Valid = r.Score >= 0.5
	return r
}

func sectionPresent(content string, s rubric.Section) bool {
	lower := strings.ToLower(content)
	for _, name := range append([]string{s.Title}, s.Aliases...) {
		if strings.Contains(content, "# "+name) ||
			strings.Contains(content, "**"+name+"**") ||
			strings.Contains(content, name+":") ||
			strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// readmeScore is the standalone README quality score reported alongside the
// documentation category.
func readmeScore(r ReadmeResult, coverage float64, minSize int64) float64 {
	score := 0.0

	switch {
	case r.Size >= minSize:
		score += 0.15
	case float64(r.Size) >= float64(minSize)*0.7:
		score += 0.1
	}

	switch {
	case coverage >= 0.9:
		score += 0.4
	case coverage >= 0.7:
		score += 0.3
	case coverage >= 0.5:
		score += 0.15
	}

	switch {
	case r.HasCodeExamples && r.CodeBlockCount >= 2:
		score += 0.2
	case r.HasCodeExamples:
		score += 0.1
	}

	elements := 0
	for _, ok := range []bool{r.HasHeaders, r.HasLists, r.HasBold, r.HasCodeExamples} {
		if ok {
			elements++
		}
	}
	switch {
	case elements >= 4:
		score += 0.15
	case elements >= 2:
		score += 0.1
	}

	if r.HasHeaders {
		score += 0.1
	}
	return round2(score)
}
