package rubric

import "sort"

// VariantConfig describes one assignment variant.
type VariantConfig struct {
	ID                int                 `json:"id"`
	Name              string              `json:"name"`
	Dataset           string              `json:"dataset"`
	Split             string              `json:"split,omitempty"`
	Source            string              `json:"source,omitempty"`
	DatasetConfig     string              `json:"config,omitempty"`
	ExpectedFiles     []string            `json:"expected_files"`
	RequiredFunctions []string            `json:"required_functions,omitempty"`
	MinLines          int                 `json:"min_lines,omitempty"`
	MaxLines          int                 `json:"max_lines,omitempty"`
	JSONSchema        map[string][]string `json:"json_schema,omitempty"`
}

// Empty reports whether c is the fallback config returned for unknown ids.
func (c VariantConfig) Empty() bool {
	return c.ID == 0 && len(c.ExpectedFiles) == 0
}

var variants = map[int]VariantConfig{
	1: {
		Name:    "IMDb Movie Reviews Sentiment Analysis",
		Dataset: "imdb",
		Split:   "train[:1000]",
		ExpectedFiles: []string{
			"assignment.py", "test.py", "imdb_results.json", "imdb_top_words.csv", "imdb_analysis.png",
		},
		RequiredFunctions: []string{
			"load_imdb_dataset",
			"analyze_sentiment_distribution",
			"analyze_text_lengths",
			"extract_top_words",
			"create_visualization",
		},
		MinLines: 50,
		MaxLines: 100,
		JSONSchema: map[string][]string{
			"sentiment_distribution": {"positive", "negative", "positive_percent", "negative_percent"},
			"text_statistics":        {"mean_length", "median_length", "min_length", "max_length"},
			"top_words":              nil,
		},
	},
	2: {
		Name:          "AG News Topic Classification",
		Dataset:       "ag_news",
		Split:         "train[:2000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "ag_news_results.json", "visualization.png"},
		RequiredFunctions: []string{
			"load_ag_news_dataset",
			"analyze_category_distribution",
			"extract_top_words_by_category",
			"create_pie_chart",
		},
		MinLines: 50,
		MaxLines: 100,
	},
	3: {
		Name:          "Wikipedia Word Frequency Analysis",
		Dataset:       "wikipedia",
		Split:         "train[:500]",
		ExpectedFiles: []string{"assignment.py", "test.py", "wikipedia_results.json", "wikipedia_wordcloud.png"},
	},
	4: {
		Name:          "MNIST Digit Recognition Analysis",
		Dataset:       "ylecun/mnist",
		Split:         "train[:5000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "mnist_results.json", "mnist_examples.png"},
	},
	5: {
		Name:          "SQuAD Question Answering Dataset",
		Dataset:       "rajpurkar/squad",
		Split:         "train[:2000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "squad_results.json", "squad_distribution.png"},
	},
	6: {
		Name:          "BoolQ Yes/No Questions",
		Dataset:       "google/boolq",
		Split:         "train[:2000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "boolq_results.json", "boolq_distribution.png"},
	},
	7: {
		Name:          "Multi-NLI Textual Entailment",
		Dataset:       "nyu-mll/multi_nli",
		Split:         "train[:2000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "multinli_results.json", "multinli_distribution.png"},
	},
	8: {
		Name:          "Iris Flower Classification",
		Dataset:       "iris",
		Source:        "sklearn",
		ExpectedFiles: []string{"assignment.py", "test.py", "iris_results.json", "iris_scatter_plots.png"},
	},
	9: {
		Name:          "GLUE MRPC Semantic Similarity",
		Dataset:       "nyu-mll/glue",
		DatasetConfig: "mrpc",
		Split:         "train[:2000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "mrpc_results.json", "mrpc_distribution.png"},
	},
	10: {
		Name:          "DBpedia Category Classification",
		Dataset:       "dbpedia_14",
		Split:         "train[:3000]",
		ExpectedFiles: []string{"assignment.py", "test.py", "dbpedia_results.json", "dbpedia_distribution.png"},
	},
}

// MinVariant and MaxVariant bound the valid variant ids.
const (
	MinVariant = 1
	MaxVariant = 10
)

// Lookup returns the config for id and whether it is known.
func Lookup(id int) (VariantConfig, bool) {
	c, ok := variants[id]
	if !ok {
		return VariantConfig{}, false
	}
	return c.clone(id), true
}

// Get returns the config for id, or an empty config when the id is unknown.
func Get(id int) VariantConfig {
	c, _ := Lookup(id)
	return c
}

// Variants returns all known variant ids in ascending order.
func Variants() []int {
	ids := make([]int, 0, len(variants))
	for id := range variants {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ValidVariant reports whether id is in the accepted range.
func ValidVariant(id int) bool {
	return id >= MinVariant && id <= MaxVariant
}

func (c VariantConfig) clone(id int) VariantConfig {
	c.ID = id
	c.ExpectedFiles = append([]string(nil), c.ExpectedFiles...)
	c.RequiredFunctions = append([]string(nil), c.RequiredFunctions...)
	if c.JSONSchema != nil {
		schema := make(map[string][]string, len(c.JSONSchema))
		for k, v := range c.JSONSchema {
			schema[k] = append([]string(nil), v...)
		}
		c.JSONSchema = schema
	}
	return c
}
