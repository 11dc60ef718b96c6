package refdata

import (
	"regexp"
	"strings"
)

var (
	// Common key=value formats that sometimes leak in error strings.
	credentialKVRe = regexp.MustCompile(`(?i)\b(password|accesskey|access[_-]key|username)\b\s*["']?\s*[:=]\s*["']?[^\s"'&]+`)

	// Matches "Bearer <token>" in case an upstream proxy injects one.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)
)

// redactSecrets removes obvious credential-bearing substrings from error/log
// strings. Query requests carry the service account password in the body, so
// echoed requests must never reach logs verbatim.
func redactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = credentialKVRe.ReplaceAllString(out, "$1=<redacted>")
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	return strings.TrimSpace(out)
}
