package validations

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var spacesRegex *regexp.Regexp = regexp.MustCompile("[\t|\n]+")

var sanitization = bluemonday.StrictPolicy()

func CleanUpText(text string) string {
	return strings.TrimSpace(html.UnescapeString(
		sanitization.Sanitize(
			spacesRegex.ReplaceAllLiteralString(text, " "),
		)))
}

// TruncateForModel bounds text sent to external capabilities. Cuts on a
// rune boundary so multi-byte characters are never split.
func TruncateForModel(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
