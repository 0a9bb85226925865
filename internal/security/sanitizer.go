// Package security holds input hygiene helpers.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer reduces user input to plain text. Markup is stripped and
// the entities the policy emits are decoded again, so "O'Brien" survives
// unchanged while "<b>Asha</b>" becomes "Asha".
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer builds a sanitizer on bluemonday's strict policy.
// The policy is safe for concurrent use.
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize returns s without markup and surrounding whitespace.
func (t *TextSanitizer) Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(t.policy.Sanitize(s)))
}
