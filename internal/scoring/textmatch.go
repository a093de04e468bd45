package scoring

import "strings"

// Normalize case-folds and trims surrounding whitespace. Interior whitespace
// is kept: "New York" and "new york" match, "NewYork" does not.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
