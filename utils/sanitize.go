// utils/sanitize.go
package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)

// SanitizeInput trims free text, drops control characters other than line
// breaks and removes script blocks
func SanitizeInput(input string) string {
	input = scriptRegex.ReplaceAllString(input, "")

	input = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(input)
}

// SanitizeToken trims an opaque client token and rejects embedded whitespace
func SanitizeToken(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" || strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return "", false
	}
	return token, true
}
