package grader

import (
	"strings"

	"autograder/internal/rubric"
)

// DatasetValidationResult checks that assignment.py loads the variant's
// dataset and defines the required analysis functions.
type DatasetValidationResult struct {
	Error string `json:"error,omitempty"`

	Dataset           string   `json:"dataset,omitempty"`
	DatasetLoading    bool     `json:"dataset_loading"`
	DatasetValidation bool     `json:"dataset_validation"`
	FunctionsFound    []string `json:"functions_found"`
	FunctionsMissing  []string `json:"functions_missing"`
	FunctionCoverage  float64  `json:"function_coverage"`
}

func checkDatasetValidation(content string, ok bool, cfg rubric.VariantConfig) DatasetValidationResult {
	r := DatasetValidationResult{
		Dataset:          cfg.Dataset,
		FunctionsFound:   []string{},
		FunctionsMissing: []string{},
	}
	if !ok {
		r.Error = "Assignment file not found"
		return r
	}

	r.DatasetLoading = referencesDataset(content, cfg.Dataset)

	for _, fn := range cfg.RequiredFunctions {
		if strings.Contains(content, "def "+fn+"(") {
			r.FunctionsFound = append(r.FunctionsFound, fn)
		} else {
			r.FunctionsMissing = append(r.FunctionsMissing, fn)
		}
	}
	r.FunctionCoverage = 1.0
	if n := len(cfg.RequiredFunctions); n > 0 {
		r.FunctionCoverage = round2(float64(len(r.FunctionsFound)) / float64(n))
	}
	r.DatasetValidation = len(r.FunctionsMissing) == 0
	return r
}

// referencesDataset matches the dataset id, or its last path segment for hub
// ids such as "ylecun/mnist". Unknown variants have no dataset and never match.
func referencesDataset(content, dataset string) bool {
	if dataset == "" {
		return false
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, strings.ToLower(dataset)) {
		return true
	}
	if i := strings.LastIndex(dataset, "/"); i >= 0 && i < len(dataset)-1 {
		return strings.Contains(lower, strings.ToLower(dataset[i+1:]))
	}
	return false
}
