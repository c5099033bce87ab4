package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Phone redacts a caller phone number when enabled, keeping the last two
// digits for correlation.
func Phone(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	digits := strings.TrimLeft(in, "+")
	if len(digits) > 2 {
		return "[REDACTED_PHONE:" + digits[len(digits)-2:] + "]"
	}
	return "[REDACTED_PHONE]"
}

// Text redacts phone numbers embedded in free-form text when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	return phoneRe.ReplaceAllString(in, "[REDACTED_PHONE]")
}
