// Package redact strips credentials, tokens and infrastructure details from
// strings before they are logged, stored on task rows or returned to clients.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules run in order; credential rules come before path and host rules so a
// connection string is replaced whole.
var rules = []rule{
	{regexp.MustCompile(`(?i)(postgres(?:ql)?|mysql|mongodb|redis|rediss|amqp)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]{8,}`), "Bearer " + RedactionPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|access[_-]?key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`(?:^|[\s"'(=])(/[\w.-]+){2,}`), " " + RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Message renders err for storage: redacted, trimmed and cut to max runes.
// An empty result becomes fallback.
func Message(err error, max int, fallback string) string {
	msg := strings.TrimSpace(Error(err))
	if msg == "" {
		return fallback
	}
	return Truncate(msg, max)
}
