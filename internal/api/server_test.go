// internal/api/server_test.go
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spygit/internal/analysis"
	"spygit/internal/auth"
	"spygit/internal/dashboard"
	custom_errors "spygit/internal/errors"
	"spygit/internal/syncer"
	"spygit/internal/webhook"
)

type SyncerMock struct{ mock.Mock }

func (m *SyncerMock) SyncStudent(ctx context.Context, studentID, token string) (syncer.Summary, error) {
	args := m.Called(ctx, studentID, token)
	return args.Get(0).(syncer.Summary), args.Error(1)
}
func (m *SyncerMock) SyncStoredToken(ctx context.Context, userID string) (syncer.Summary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(syncer.Summary), args.Error(1)
}

type WebhookMock struct{ mock.Mock }

func (m *WebhookMock) Handle(ctx context.Context, d webhook.Delivery) (webhook.Outcome, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(webhook.Outcome), args.Error(1)
}

type AnalyzerMock struct{ mock.Mock }

func (m *AnalyzerMock) Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(analysis.Result), args.Error(1)
}

type DashboardsMock struct{ mock.Mock }

func (m *DashboardsMock) Build(ctx context.Context, userID, dashboardType string) (any, error) {
	args := m.Called(ctx, userID, dashboardType)
	return args.Get(0), args.Error(1)
}

type PingerMock struct{ mock.Mock }

func (m *PingerMock) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }

const testSecret = "test-secret"

type testServer struct {
	syncer     *SyncerMock
	webhooks   *WebhookMock
	analyzer   *AnalyzerMock
	dashboards *DashboardsMock
	db         *PingerMock
	handler    http.Handler
}

func newTestServer() *testServer {
	ts := &testServer{
		syncer:     new(SyncerMock),
		webhooks:   new(WebhookMock),
		analyzer:   new(AnalyzerMock),
		dashboards: new(DashboardsMock),
		db:         new(PingerMock),
	}
	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Syncer:     ts.syncer,
		Webhooks:   ts.webhooks,
		Analyzer:   ts.analyzer,
		Dashboards: ts.dashboards,
		Auth:       auth.NewVerifier(testSecret),
		DB:         ts.db,
	})
	ts.handler = s.Routes()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewVerifier(testSecret).Sign(userID, jwt.RegisteredClaims{})
	require.NoError(t, err)
	return "Bearer " + token
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServer_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ts := newTestServer()
		ts.db.On("Ping", mock.Anything).Return(nil).Once()

		rr := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("database down", func(t *testing.T) {
		ts := newTestServer()
		ts.db.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()

		rr := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"unavailable"}`, rr.Body.String())
	})
}

func TestServer_SyncGithubData(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		setupMocks func(*SyncerMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "Success",
			body: `{"studentId":"s1","githubToken":"gho_x"}`,
			setupMocks: func(m *SyncerMock) {
				m.On("SyncStudent", mock.Anything, "s1", "gho_x").Return(syncer.Summary{
					Username: "octocat", ReposCount: 2, CommitsSynced: 7, PRsCount: 3,
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"data":{"username":"octocat","repos_count":2,"commits_synced":7,"prs_count":3}}`,
		},
		{
			name:       "Missing token",
			body:       `{"studentId":"s1"}`,
			setupMocks: func(m *SyncerMock) {},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Missing required parameters: githubToken"}`,
		},
		{
			name: "GitHub rejects the token",
			body: `{"studentId":"s1","githubToken":"bad"}`,
			setupMocks: func(m *SyncerMock) {
				m.On("SyncStudent", mock.Anything, "s1", "bad").Return(syncer.Summary{}, &custom_errors.UpstreamError{Service: "GitHub", StatusCode: 401}).Once()
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Unauthorized"}`,
		},
		{
			name: "GitHub rate limit",
			body: `{"studentId":"s1","githubToken":"gho_x"}`,
			setupMocks: func(m *SyncerMock) {
				m.On("SyncStudent", mock.Anything, "s1", "gho_x").Return(syncer.Summary{}, &custom_errors.UpstreamError{Service: "GitHub", StatusCode: 403, Message: "rate limit exceeded", RateLimited: true}).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"GitHub API error: rate limit exceeded"}`,
		},
		{
			name:       "Invalid JSON",
			body:       `{nope`,
			setupMocks: func(m *SyncerMock) {},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			tc.setupMocks(ts.syncer)

			rr := ts.do(post("/functions/v1/sync-github-data", tc.body))

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, rr.Body.String())
			}
			ts.syncer.AssertExpectations(t)
		})
	}
}

func TestServer_FetchGithubData(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		ts := newTestServer()

		rr := ts.do(post("/functions/v1/fetch-github-data", `{}`))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
		ts.syncer.AssertNotCalled(t, "SyncStoredToken", mock.Anything, mock.Anything)
	})

	t.Run("syncs the caller's stored token", func(t *testing.T) {
		ts := newTestServer()
		ts.syncer.On("SyncStoredToken", mock.Anything, "user-1").Return(syncer.Summary{Username: "octocat", ReposCount: 1}, nil).Once()

		req := post("/functions/v1/fetch-github-data", `{}`)
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rr := ts.do(req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"data":{"username":"octocat","repos_count":1,"commits_synced":0,"prs_count":0}}`, rr.Body.String())
	})
}

func TestServer_GithubWebhook(t *testing.T) {
	payload := `{"repository":{"id":42}}`

	newDelivery := func() *http.Request {
		req := post("/functions/v1/github-webhook", payload)
		req.Header.Set("X-GitHub-Event", "push")
		req.Header.Set("X-GitHub-Delivery", "d-1")
		req.Header.Set("X-Hub-Signature-256", "sha256=abc")
		return req
	}
	matchesDelivery := mock.MatchedBy(func(d webhook.Delivery) bool {
		return d.Event == "push" && d.DeliveryID == "d-1" && d.Signature == "sha256=abc" &&
			d.ContentType == "application/json" && string(d.Body) == payload
	})

	t.Run("registered repository", func(t *testing.T) {
		ts := newTestServer()
		ts.webhooks.On("Handle", mock.Anything, matchesDelivery).Return(webhook.Outcome{Registered: true, Recorded: 2}, nil).Once()

		rr := ts.do(newDelivery())

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true}`, rr.Body.String())
		ts.webhooks.AssertExpectations(t)
	})

	t.Run("unregistered repository", func(t *testing.T) {
		ts := newTestServer()
		ts.webhooks.On("Handle", mock.Anything, mock.Anything).Return(webhook.Outcome{}, nil).Once()

		rr := ts.do(newDelivery())

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Repository not registered"}`, rr.Body.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		ts := newTestServer()
		ts.webhooks.On("Handle", mock.Anything, mock.Anything).Return(webhook.Outcome{}, custom_errors.ErrUnauthenticated).Once()

		rr := ts.do(newDelivery())

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestServer_AnalyzeCode(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer()
		ts.analyzer.On("Analyze", mock.Anything, mock.MatchedBy(func(req analysis.Request) bool {
			return req.RepositoryID == "r1" && req.CommitSHA == "abc" && req.AssignmentID != nil && *req.AssignmentID == "a1"
		})).Return(analysis.Result{AnalysisID: "an1", OverallGrade: 75, Feedback: "Solid"}, nil).Once()

		rr := ts.do(post("/functions/v1/analyze-code", `{"repositoryId":"r1","commitSha":"abc","assignmentId":"a1"}`))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"analysisId":"an1","overallGrade":75,"feedback":"Solid"}`, rr.Body.String())
	})

	t.Run("AI rate limit", func(t *testing.T) {
		ts := newTestServer()
		ts.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(analysis.Result{}, custom_errors.ErrRateLimited).Once()

		rr := ts.do(post("/functions/v1/analyze-code", `{"repositoryId":"r1","commitSha":"abc"}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Rate limit exceeded. Please try again later."}`, rr.Body.String())
	})

	t.Run("Missing fields", func(t *testing.T) {
		ts := newTestServer()

		rr := ts.do(post("/functions/v1/analyze-code", `{}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Missing required parameters: repositoryId and commitSha"}`, rr.Body.String())
	})
}

func TestServer_DashboardData(t *testing.T) {
	t.Run("student dashboard", func(t *testing.T) {
		ts := newTestServer()
		ts.dashboards.On("Build", mock.Anything, "user-1", dashboard.TypeStudent).Return(dashboard.StudentView{
			Stats: dashboard.StudentStats{TotalCommits: 4},
		}, nil).Once()

		req := post("/functions/v1/dashboard-data", `{"type":"student"}`)
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rr := ts.do(req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"totalCommits":4`)
	})

	t.Run("invalid type", func(t *testing.T) {
		ts := newTestServer()

		req := post("/functions/v1/dashboard-data", `{"type":"admin"}`)
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rr := ts.do(req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid dashboard type"}`, rr.Body.String())
		ts.dashboards.AssertNotCalled(t, "Build", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("teacher dashboard for a student", func(t *testing.T) {
		ts := newTestServer()
		ts.dashboards.On("Build", mock.Anything, "user-1", dashboard.TypeTeacher).Return(nil, custom_errors.ErrInvalidDashboardType).Once()

		req := post("/functions/v1/dashboard-data", `{"type":"teacher"}`)
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rr := ts.do(req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid dashboard type"}`, rr.Body.String())
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		ts := newTestServer()
		token, err := auth.NewVerifier("other").Sign("user-1", jwt.RegisteredClaims{})
		require.NoError(t, err)

		req := post("/functions/v1/dashboard-data", `{"type":"student"}`)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := ts.do(req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/github-webhook", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-github-event")
	rr := ts.do(req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	ts.webhooks.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestServer_WorkOutlivesCancelledRequest(t *testing.T) {
	cancelled := func(req *http.Request) *http.Request {
		ctx, cancel := context.WithCancel(req.Context())
		cancel()
		return req.WithContext(ctx)
	}
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

	t.Run("analyze-code", func(t *testing.T) {
		ts := newTestServer()
		ts.analyzer.On("Analyze", live, mock.Anything).Return(analysis.Result{AnalysisID: "an1"}, nil).Once()

		rr := ts.do(cancelled(post("/functions/v1/analyze-code", `{"repositoryId":"r1","commitSha":"abc"}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		ts.analyzer.AssertExpectations(t)
	})

	t.Run("sync-github-data", func(t *testing.T) {
		ts := newTestServer()
		ts.syncer.On("SyncStudent", live, "s1", "gho_x").Return(syncer.Summary{Username: "octocat"}, nil).Once()

		rr := ts.do(cancelled(post("/functions/v1/sync-github-data", `{"studentId":"s1","githubToken":"gho_x"}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		ts.syncer.AssertExpectations(t)
	})

	t.Run("fetch-github-data", func(t *testing.T) {
		ts := newTestServer()
		ts.syncer.On("SyncStoredToken", live, "user-1").Return(syncer.Summary{Username: "octocat"}, nil).Once()

		req := post("/functions/v1/fetch-github-data", `{}`)
		req.Header.Set("Authorization", bearer(t, "user-1"))
		rr := ts.do(cancelled(req))

		assert.Equal(t, http.StatusOK, rr.Code)
		ts.syncer.AssertExpectations(t)
	})
}

func TestServer_SyncMissingBothFields(t *testing.T) {
	ts := newTestServer()

	rr := ts.do(post("/functions/v1/sync-github-data", `{}`))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Missing required parameters: studentId and githubToken"}`, rr.Body.String())
}
