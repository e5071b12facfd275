package grader

import "strings"

const tripleDouble = `"""`
const tripleSingle = `'''`

func lines(content string) []string {
	return strings.Split(content, "\n")
}

// commentLines counts lines that start with '#', ignoring encoding declarations.
func commentLines(content string) int {
	n := 0
	for _, l := range lines(content) {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "#") && !strings.Contains(t, "coding") {
			n++
		}
	}
	return n
}

func hasTripleQuote(s string) bool {
	return strings.Contains(s, tripleDouble) || strings.Contains(s, tripleSingle)
}
