package refdata

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is a sanitized summary of a non-2xx reference-service response.
//
// Important: do not include raw response bodies here (they can echo the
// request credentials).
type APIError struct {
	Op         string
	StatusCode int
	Status     string

	// Snippet is a redacted, truncated hint from the response body.
	Snippet string
}

func (e *APIError) Error() string {
	if e == nil {
		return "refdata api error"
	}
	parts := []string{
		fmt.Sprintf("refdata api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	e := &APIError{Op: op}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
	}
	e.Snippet = redactAndTruncate(body)
	return e
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
