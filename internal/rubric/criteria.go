package rubric

// Category names used as keys in reports.
const (
	CodeQuality       = "code_quality"
	DatasetValidation = "dataset_validation"
	Documentation     = "documentation"
	UnitTests         = "unit_tests"
	Functionality     = "functionality"
)

// Category is one weighted rubric category. Weights are percentages.
type Category struct {
	Name   string   `json:"name"`
	Weight int      `json:"weight"`
	Checks []string `json:"checks"`
}

var categories = []Category{
	{
		Name:   CodeQuality,
		Weight: 20,
		Checks: []string{"pep8_compliance", "function_naming", "type_hints", "line_length", "no_code_duplication"},
	},
	{
		Name:   DatasetValidation,
		Weight: 15,
		Checks: []string{"correct_dataset_loaded", "expected_fields_present", "data_integrity", "error_handling", "logging"},
	},
	{
		Name:   Documentation,
		Weight: 15,
		Checks: []string{"module_docstring", "function_docstrings", "inline_comments", "readme", "doctest_examples"},
	},
	{
		Name:   UnitTests,
		Weight: 15,
		Checks: []string{"test_file_exists", "min_5_functions_tested", "all_tests_pass", "coverage_above_50", "edge_cases_covered"},
	},
	{
		Name:   Functionality,
		Weight: 35,
		Checks: []string{"correct_output_format", "calculations_are_correct", "no_placeholder_solutions", "visualization_informative", "statistics_meaningful"},
	},
}

// Categories returns the rubric categories in report order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Checks = append([]string(nil), c.Checks...)
		out[i] = c
	}
	return out
}

// TotalWeight is the sum of all category weights; always 100.
func TotalWeight() int {
	total := 0
	for _, c := range categories {
		total += c.Weight
	}
	return total
}

// Section is a README heading the submission must cover. Aliases are
// alternative spellings accepted in place of Title.
type Section struct {
	Title   string   `json:"title"`
	Aliases []string `json:"aliases,omitempty"`
}

// ReadmeRequirements lists what a README must contain.
type ReadmeRequirements struct {
	Sections                []Section `json:"sections"`
	MinLength               int64     `json:"min_length"`
	RequiredSectionsPercent float64   `json:"required_sections_percent"`
}

// Readme returns the README requirements shared by all variants.
func Readme() ReadmeRequirements {
	return ReadmeRequirements{
		Sections: []Section{
			{Title: "Описание задачи", Aliases: []string{"Task Description"}},
			{Title: "Информация о датасете", Aliases: []string{"Dataset Information"}},
			{Title: "Требования", Aliases: []string{"Requirements"}},
			{Title: "Установка", Aliases: []string{"Installation"}},
			{Title: "Использование", Aliases: []string{"Usage"}},
			{Title: "Выходные файлы", Aliases: []string{"Output Files"}},
			{Title: "Пример вывода", Aliases: []string{"Example Output"}},
		},
		MinLength:               500,
		RequiredSectionsPercent: 0.7,
	}
}
