package boards

import (
	"errors"
	"strings"
)

// ErrInvalidSlug indicates that normalization left no usable characters.
var ErrInvalidSlug = errors.New("boards: slug must contain at least one alphanumeric character")

// Normalize lowercases the raw value, collapses every run of characters
// outside [a-z0-9] into a single hyphen, and strips leading and trailing
// hyphens. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	var builder strings.Builder
	pendingHyphen := false
	for _, r := range lowered {
		alphanumeric := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alphanumeric {
			pendingHyphen = builder.Len() > 0
			continue
		}
		if pendingHyphen {
			builder.WriteByte('-')
			pendingHyphen = false
		}
		builder.WriteRune(r)
	}

	slug := builder.String()
	if slug == "" {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// FallbackName derives a display name from a normalized slug by
// title-casing its hyphen-separated words. An empty decomposition yields
// "Untitled Board".
func FallbackName(slug string) string {
	words := make([]string, 0, 4)
	for _, word := range strings.Split(slug, "-") {
		if word == "" {
			continue
		}
		words = append(words, strings.ToUpper(word[:1])+word[1:])
	}
	if len(words) == 0 {
		return "Untitled Board"
	}
	return strings.Join(words, " ")
}
