package reporting

import (
	"regexp"
	"strings"
)

var capitalRegex = regexp.MustCompile(`([A-Z])`)

// CleanupName turns an identifier into a readable specification name:
// underscores become spaces and every capital letter starts a new word.
func CleanupName(name string) string {
	return cleanupCamelCasing(cleanupUnderscores(name))
}

func cleanupUnderscores(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func cleanupCamelCasing(name string) string {
	return strings.TrimSpace(capitalRegex.ReplaceAllString(name, " $1"))
}
