package handlers

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// maxSanitizePasses bounds how many layers of entity encoding are peeled.
const maxSanitizePasses = 4

var angleStripper = strings.NewReplacer("<", "", ">", "")

// sanitizeText strips every HTML tag from user text. Entities the policy
// escapes are decoded again so plain text round-trips unchanged, and the
// policy is reapplied until decoding no longer yields new markup.
func sanitizeText(s string) string {
	if s == "" {
		return ""
	}
	out := s
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(angleStripper.Replace(unescapeAll(out)))
}

func unescapeAll(s string) string {
	for {
		next := html.UnescapeString(s)
		if next == s {
			return s
		}
		s = next
	}
}
