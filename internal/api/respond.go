// internal/api/respond.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	custom_errors "spygit/internal/errors"
	"spygit/internal/validation"
	"spygit/pkg/logger/sl"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response", sl.Err(err))
	}
}

// respondError writes {"error": msg}. Authentication failures are 401; everything else,
// malformed input included, is 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	if errors.Is(err, custom_errors.ErrUnauthenticated) {
		status = http.StatusUnauthorized
		msg = custom_errors.ErrUnauthenticated.Error()
	}

	s.log.Error("request failed",
		"request_id", getRequestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		sl.Err(err),
	)
	s.respond(w, status, errorResponse{Error: msg})
}

func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validation.ValidateStruct(dst)
}
