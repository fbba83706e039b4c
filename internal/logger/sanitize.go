package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for values that reach the logs. Titles come from users, paths
// and request IDs from the network, so none of them are trusted.
const (
	MaxPathLength          = 500
	MaxIDLength            = 128 // UUIDs are 36
	MaxTitleLength         = 255
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

const truncationMarker = "..."

// SanitizeString strips control characters and invalid UTF-8 from s and cuts
// it to at most maxLength bytes without splitting a rune. A cut value ends in
// "...". maxLength <= 0 selects MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return s
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	clean := strings.Map(keepPrintable, strings.ToValidUTF8(s, ""))
	if len(clean) <= maxLength {
		return clean
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return clean[:cut] + truncationMarker
}

// keepPrintable is a strings.Map callback; whitespace used in multi-line
// notes survives, every other non-printable rune is dropped
func keepPrintable(r rune) rune {
	switch {
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return r
	case unicode.IsPrint(r):
		return r
	default:
		return -1
	}
}

// SanitizePath caps a request path
func SanitizePath(path string) string { return SanitizeString(path, MaxPathLength) }

// SanitizeID caps a caller-supplied job or request identifier
func SanitizeID(id string) string { return SanitizeString(id, MaxIDLength) }

// SanitizeTitle caps a job title
func SanitizeTitle(title string) string { return SanitizeString(title, MaxTitleLength) }

// SanitizeError renders err for logging; nil becomes ""
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}
