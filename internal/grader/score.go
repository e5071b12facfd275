package grader

// Category scoring. Each check adds a fixed credit and the sum is averaged
// over the checks performed.

type tally struct {
	score  float64
	checks int
}

func (t *tally) add(v float64) {
	t.score += v
	t.checks++
}

// pick returns pass when ok, otherwise fallback.
func (t *tally) pick(ok bool, pass, fallback float64) {
	if ok {
		t.add(pass)
		return
	}
	t.add(fallback)
}

func (t *tally) mean() float64 {
	if t.checks == 0 {
		return 0
	}
	return t.score / float64(t.checks)
}

// Credit for a lint run that could not complete.
const lintErrorCredit = 0.5

func scoreCodeQuality(r CodeQualityResult) float64 {
	if r.Error != "" {
		return 0
	}
	var t tally

	switch {
	case r.PEP8Pass:
		t.add(1)
	case r.PEP8Error != "":
		t.add(lintErrorCredit)
	default:
		t.add(max(0, 1-float64(r.PEP8Violations)*0.1))
	}

	t.pick(r.HasTypeHints, 1, 0.2)
	t.pick(r.HasDocstrings, 1, 0.3)

	switch {
	case r.CodeLengthOK:
		t.add(1)
	case r.CodeLines >= 40 && r.CodeLines <= maxCodeLines:
		t.add(0.7)
	default:
		t.add(0.2)
	}
	return t.mean()
}

func scoreDatasetValidation(r DatasetValidationResult) float64 {
	if r.Error != "" {
		return 0
	}
	base := 0.2
	if r.DatasetLoading {
		base = 0.8
	}
	return base + 0.2*r.FunctionCoverage
}

func scoreDocumentation(r DocumentationResult) float64 {
	var t tally

	// assignment.py
	t.pick(r.HasModuleDocstring, 1, 0.2)
	t.pick(r.HasFunctionDocstrings, 1, 0.3)
	t.pick(r.HasInlineComments, 1, 0.5)
	t.pick(r.HasDocstringSections, 1, 0.3)

	// README.md
	rd := r.Readme
	t.pick(rd.Exists, 1, 0)

	switch {
	case rd.Size >= 500:
		t.add(1)
	case rd.Size >= 300:
		t.add(0.6)
	case rd.Size > 0:
		t.add(0.2)
	default:
		t.add(0)
	}

	switch {
	case rd.SectionsCoverage >= 0.8:
		t.add(1)
	case rd.SectionsCoverage >= 0.7:
		t.add(0.8)
	case rd.SectionsCoverage >= 0.5:
		t.add(0.5)
	default:
		t.add(0.1)
	}

	switch {
	case rd.CodeBlockCount >= 2:
		t.add(1)
	case rd.CodeBlockCount == 1:
		t.add(0.6)
	default:
		t.add(0.1)
	}

	switch {
	case rd.HasHeaders && rd.HasLists:
		t.add(1)
	case rd.HasHeaders || rd.HasLists:
		t.add(0.6)
	default:
		t.add(0.2)
	}
	return t.mean()
}

func scoreUnitTests(r UnitTestsResult) float64 {
	if !r.TestFileExists {
		return 0
	}
	if r.TestsPass {
		return 1
	}
	return 0.3
}

func scoreFunctionality(r OutputFormatResult) float64 {
	var t tally
	t.pick(r.ResultsJSONValid, 1, 0.1)
	t.pick(r.VisualizationPNGExists, 1, 0.2)
	return t.mean()
}
