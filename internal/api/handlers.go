// internal/api/handlers.go
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"spygit/internal/analysis"
	"spygit/internal/auth"
	custom_errors "spygit/internal/errors"
	"spygit/internal/syncer"
	"spygit/internal/webhook"
)

// GitHub caps webhook payloads at 25 MB.
const maxWebhookBody = 25 << 20

type syncRequest struct {
	StudentID   string `json:"studentId" validate:"required"`
	GithubToken string `json:"githubToken" validate:"required"`
}

type syncResponse struct {
	Success bool           `json:"success"`
	Data    syncer.Summary `json:"data"`
}

type analyzeRequest struct {
	RepositoryID string  `json:"repositoryId" validate:"required"`
	CommitSHA    string  `json:"commitSha" validate:"required"`
	AssignmentID *string `json:"assignmentId,omitempty"`
}

type analyzeResponse struct {
	Success bool `json:"success"`
	analysis.Result
}

type dashboardRequest struct {
	Type string `json:"type" validate:"required,dashboard_type"`
}

// Syncs and analyses run to completion once started, even if the caller disconnects.

// POST /functions/v1/sync-github-data
func (s *Server) syncGithubData(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	summary, err := s.syncer.SyncStudent(context.WithoutCancel(r.Context()), req.StudentID, req.GithubToken)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, syncResponse{Success: true, Data: summary})
}

// POST /functions/v1/fetch-github-data
func (s *Server) fetchGithubData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, r, custom_errors.ErrUnauthenticated)
		return
	}

	summary, err := s.syncer.SyncStoredToken(context.WithoutCancel(r.Context()), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, syncResponse{Success: true, Data: summary})
}

// POST /functions/v1/github-webhook
func (s *Server) githubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("failed to read webhook body: %w", err))
		return
	}

	out, err := s.webhooks.Handle(r.Context(), webhook.Delivery{
		Event:       r.Header.Get("X-GitHub-Event"),
		DeliveryID:  r.Header.Get("X-GitHub-Delivery"),
		Signature:   r.Header.Get("X-Hub-Signature-256"),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if !out.Registered {
		s.respond(w, http.StatusOK, map[string]string{"message": "Repository not registered"})
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /functions/v1/analyze-code
func (s *Server) analyzeCode(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.analyzer.Analyze(context.WithoutCancel(r.Context()), analysis.Request{
		RepositoryID: req.RepositoryID,
		CommitSHA:    req.CommitSHA,
		AssignmentID: req.AssignmentID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, analyzeResponse{Success: true, Result: res})
}

// POST /functions/v1/dashboard-data
func (s *Server) dashboardData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, r, custom_errors.ErrUnauthenticated)
		return
	}

	var req dashboardRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.dashboards.Build(r.Context(), userID, req.Type)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, view)
}
