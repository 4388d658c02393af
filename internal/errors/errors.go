// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated covers missing or rejected credentials: GitHub tokens, bearer JWTs
	// and webhook signatures.
	ErrUnauthenticated = errors.New("Unauthorized")

	ErrNotFound = errors.New("resource not found")

	ErrRateLimited      = errors.New("Rate limit exceeded. Please try again later.")
	ErrCreditsExhausted = errors.New("AI credits exhausted. Please add credits to your workspace.")

	ErrInvalidDashboardType = errors.New("Invalid dashboard type")
)

// UpstreamError is returned when the code-hosting API answers with a non-success status.
type UpstreamError struct {
	Service     string
	StatusCode  int
	Message     string
	RateLimited bool
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s API error: %s", e.Service, msg)
}

// Is lets a GitHub 401 match ErrUnauthenticated and a rate-limit response match ErrRateLimited.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrRateLimited:
		return e.RateLimited
	}
	return false
}

// AnalysisFailedError is a non-success answer from the completion service that is neither a
// rate limit nor exhausted credits.
type AnalysisFailedError struct {
	StatusCode int
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("AI analysis failed: %d", e.StatusCode)
}

// MissingFieldsError is returned when a request lacks required parameters.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required parameters: " + strings.Join(e.Fields, " and ")
}
