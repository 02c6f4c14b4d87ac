// Package safety implements the guards that run around a routing decision:
// PII masking before any other component sees the task text, advisory
// denylist scanning of the masked text, and JSON Schema validation of
// structured extraction results.
//
// All functions are pure and safe for concurrent use.
package safety

import "regexp"

// Mask tokens substituted for detected PII.
const (
	EmailMask = "***@***"
	PhoneMask = "***-***-****"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// A leading digit, at least seven digits/separators, a trailing digit.
	phonePattern = regexp.MustCompile(`\b\+?\d[\d\-\s]{7,}\d\b`)
)

// Sanitize masks email addresses and phone numbers in text. Emails are
// masked first so digits inside an address are never treated as a phone.
// Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	text = emailPattern.ReplaceAllLiteralString(text, EmailMask)
	return phonePattern.ReplaceAllLiteralString(text, PhoneMask)
}
