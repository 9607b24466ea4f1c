package ci

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v71/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const maxErrorBody = 512

// classifyError maps a failed list call onto the error taxonomy. resp is
// the HTTP response when one was received.
func classifyError(p Provider, resp *http.Response, err error) error {
	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil {
		return &APIError{Provider: p, StatusCode: glErr.Response.StatusCode, Body: snippet(string(glErr.Body))}
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{Provider: p, StatusCode: ghErr.Response.StatusCode, Body: readBody(ghErr.Response, ghErr.Message)}
	}
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) && rlErr.Response != nil {
		return &APIError{Provider: p, StatusCode: rlErr.Response.StatusCode, Body: readBody(rlErr.Response, rlErr.Message)}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return &APIError{Provider: p, StatusCode: abuseErr.Response.StatusCode, Body: readBody(abuseErr.Response, abuseErr.Message)}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: failed to parse %s API response: %w", ErrParse, p, err)
	}

	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &APIError{Provider: p, StatusCode: resp.StatusCode, Body: snippet(err.Error())}
	}
	return fmt.Errorf("%w: %s API request failed: %w", ErrNetwork, p, err)
}

// readBody returns the response body the client re-buffered, or fallback.
func readBody(resp *http.Response, fallback string) string {
	if resp.Body != nil {
		if b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1)); err == nil && len(b) > 0 {
			return snippet(string(b))
		}
	}
	return snippet(fallback)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
