// Package utils provides shared text and logging helpers.
package utils

import "strings"

// TruncateWords returns up to maxWords from the space-separated string, with "..."
// appended if truncated.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
