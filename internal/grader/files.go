package grader

import (
	"os"
	"path/filepath"

	"autograder/internal/rubric"
)

var requiredFiles = []string{AssignmentFile, ReadmeFile, TestFile}

// checkFiles reports presence of the required files and the variant's expected files.
func checkFiles(dir string, cfg rubric.VariantConfig) map[string]bool {
	out := make(map[string]bool, len(requiredFiles)+len(cfg.ExpectedFiles))
	for _, name := range requiredFiles {
		out[name] = fileExists(filepath.Join(dir, name))
	}
	for _, name := range cfg.ExpectedFiles {
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = fileExists(filepath.Join(dir, name))
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
