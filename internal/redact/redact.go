// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. Its main job is keeping the
// generation credential out of logs: the credential travels in request URLs and can
// resurface in transport error messages.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Precompiled regex patterns, applied in order.
var (
	// Database connection strings
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|sqlite|db|database)://[^@\s]+@`)

	// Credentials passed as URL query parameters; the parameter name is kept
	queryKeyRegex = regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|access_token)=)[^&\s"']+`)

	// Google API keys
	googleKeyRegex = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)

	// Credentials and tokens
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)

	// JWT token pattern - matches the standard three-part base64url-encoded JWT token format
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Stack trace fragments
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	rules = []rule{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{queryKeyRegex, "${1}" + RedactedKeyPlaceholder},
		{googleKeyRegex, RedactedKeyPlaceholder},
		{jwtTokenRegex, "[REDACTED_JWT]"},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{stackTraceRegex, "[STACK_TRACE_REDACTED]"},
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.replacement)
	}
	return result
}

// URL redacts credentials carried in a URL's query string and userinfo, leaving
// the rest of the URL readable.
func URL(raw string) string {
	out := dbConnRegex.ReplaceAllString(raw, RedactedCredentialPlaceholder)
	return queryKeyRegex.ReplaceAllString(out, "${1}"+RedactedKeyPlaceholder)
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
