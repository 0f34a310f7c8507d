// Package email derives display data from account email addresses.
package email

import (
	"strings"
	"unicode"
)

const anonymousName = "Member"

// FallbackName builds a person-like name from the local part of addr for
// accounts without a display name. A "+tag" suffix is ignored, so
// "jane.doe+homes@example.com" yields "Jane Doe".
func FallbackName(addr string) string {
	local := strings.TrimSpace(addr)
	if at := strings.LastIndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsSpace(r)
	})
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if !strings.ContainsFunc(p, unicode.IsLetter) {
			continue
		}
		words = append(words, titleCase(p))
	}
	if len(words) == 0 {
		return anonymousName
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
