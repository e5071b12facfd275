package grader

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autograder/internal/rubric"
)

// Fallback artifacts for variants that declare none.
var defaultArtifacts = []string{"results.json", "visualization.png"}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ArtifactResult describes one declared output file.
type ArtifactResult struct {
	Kind   string `json:"kind"`
	Exists bool   `json:"exists"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// OutputFormatResult validates the files produced by the assignment.
type OutputFormatResult struct {
	ResultsJSONValid       bool                      `json:"results_json_valid"`
	VisualizationPNGExists bool                      `json:"visualization_png_exists"`
	PNGSignatureValid      bool                      `json:"png_signature_valid"`
	CSVPresent             *bool                     `json:"csv_present,omitempty"`
	JSONSchemaMissing      []string                  `json:"json_schema_missing,omitempty"`
	Artifacts              map[string]ArtifactResult `json:"artifacts"`
}

func checkOutputFormat(dir string, cfg rubric.VariantConfig) OutputFormatResult {
	r := OutputFormatResult{Artifacts: map[string]ArtifactResult{}}

	var jsonFiles, pngFiles, csvFiles []string
	for _, name := range outputArtifacts(cfg) {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json":
			jsonFiles = append(jsonFiles, name)
		case ".png":
			pngFiles = append(pngFiles, name)
		case ".csv":
			csvFiles = append(csvFiles, name)
		}
	}

	r.ResultsJSONValid = len(jsonFiles) > 0
	for _, name := range jsonFiles {
		a, doc := checkJSONArtifact(filepath.Join(dir, name))
		r.Artifacts[name] = a
		if !a.Valid {
			r.ResultsJSONValid = false
			continue
		}
		if len(cfg.JSONSchema) > 0 {
			r.JSONSchemaMissing = append(r.JSONSchemaMissing, missingSchemaKeys(doc, cfg.JSONSchema)...)
		}
	}

	r.VisualizationPNGExists = len(pngFiles) > 0
	r.PNGSignatureValid = len(pngFiles) > 0
	for _, name := range pngFiles {
		a := checkPNGArtifact(filepath.Join(dir, name))
		r.Artifacts[name] = a
		if !a.Exists {
			r.VisualizationPNGExists = false
		}
		if !a.Valid {
			r.PNGSignatureValid = false
		}
	}

	if len(csvFiles) > 0 {
		present := true
		for _, name := range csvFiles {
			exists := fileExists(filepath.Join(dir, name))
			r.Artifacts[name] = ArtifactResult{Kind: "csv", Exists: exists, Valid: exists}
			present = present && exists
		}
		r.CSVPresent = &present
	}
	return r
}

// outputArtifacts returns the expected files other than source and tests.
func outputArtifacts(cfg rubric.VariantConfig) []string {
	var out []string
	for _, name := range cfg.ExpectedFiles {
		if strings.HasSuffix(name, ".py") {
			continue
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return append([]string(nil), defaultArtifacts...)
	}
	return out
}

func checkJSONArtifact(path string) (ArtifactResult, any) {
	a := ArtifactResult{Kind: "json"}
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.Exists = true
			a.Error = err.Error()
		}
		return a, nil
	}
	a.Exists = true
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		a.Error = err.Error()
		return a, nil
	}
	a.Valid = true
	return a, doc
}

func checkPNGArtifact(path string) ArtifactResult {
	a := ArtifactResult{Kind: "png"}
	f, err := os.Open(path)
	if err != nil {
		return a
	}
	defer f.Close()
	a.Exists = true
	head := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(f, head); err == nil && bytes.Equal(head, pngSignature) {
		a.Valid = true
	} else {
		a.Error = "missing PNG signature"
	}
	return a
}

// missingSchemaKeys lists required keys absent from doc as "key" or "key.sub".
func missingSchemaKeys(doc any, schema map[string][]string) []string {
	obj, _ := doc.(map[string]any)
	var missing []string
	for key, subs := range schema {
		v, ok := obj[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		nested, _ := v.(map[string]any)
		for _, sub := range subs {
			if _, ok := nested[sub]; !ok {
				missing = append(missing, key+"."+sub)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
