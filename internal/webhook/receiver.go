// internal/webhook/receiver.go

// Package webhook turns GitHub webhook deliveries into activities and analysis tasks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/google/uuid"

	"spygit/internal/analysis"
	"spygit/internal/database"
	"spygit/internal/dispatch"
	custom_errors "spygit/internal/errors"
	"spygit/internal/metrics"
	"spygit/internal/model"
	"spygit/pkg/logger/sl"
)

type Store interface {
	GetRepositoryByGithubID(ctx context.Context, githubRepoID int64) (model.Repository, error)
	InsertCommitActivity(ctx context.Context, arg database.CommitActivityParams) (bool, error)
	UpsertEventActivity(ctx context.Context, arg database.EventActivityParams) error
	TouchRepositorySync(ctx context.Context, id string, at time.Time) error
}

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

type Dispatcher interface {
	Dispatch(task dispatch.Task) error
}

// Delivery is one webhook request as received over HTTP.
type Delivery struct {
	Event       string
	DeliveryID  string
	Signature   string
	ContentType string
	Body        []byte
}

// Outcome describes what a delivery caused.
type Outcome struct {
	Registered     bool
	Recorded       int
	AnalysisQueued bool
}

type Receiver struct {
	store      Store
	analyzer   Analyzer
	dispatcher Dispatcher
	secret     []byte
	logger     *slog.Logger
	now        func() time.Time
}

// NewReceiver creates a Receiver. An empty secret disables signature verification.
func NewReceiver(store Store, analyzer Analyzer, dispatcher Dispatcher, secret string, logger *slog.Logger) *Receiver {
	logger = logger.With("component", "webhook")
	if secret == "" {
		logger.Warn("GITHUB_WEBHOOK_SECRET is not set, webhook signatures will not be verified")
	}
	return &Receiver{
		store:      store,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		secret:     []byte(secret),
		logger:     logger,
		now:        time.Now,
	}
}

// repositoryEnvelope is decoded before the event type is known.
type repositoryEnvelope struct {
	Repository *struct {
		ID int64 `json:"id"`
	} `json:"repository"`
}

// Handle processes a delivery. Deliveries for repositories that are not tracked are
// acknowledged without writes.
func (r *Receiver) Handle(ctx context.Context, d Delivery) (Outcome, error) {
	payload, err := r.payload(d)
	if err != nil {
		return Outcome{}, err
	}

	var env repositoryEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Outcome{}, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var repoID int64
	if env.Repository != nil {
		repoID = env.Repository.ID
	}
	logger := r.logger.With("event", d.Event, "delivery_id", d.DeliveryID, "github_repo_id", repoID)
	logger.Info("GitHub webhook received")

	repo, err := r.store.GetRepositoryByGithubID(ctx, repoID)
	if errors.Is(err, custom_errors.ErrNotFound) {
		logger.Info("Repository not registered")
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	logger = logger.With("repository_id", repo.ID)

	out := Outcome{Registered: true}

	switch d.Event {
	case "push", "pull_request", "issues":
	default:
		logger.Info("Unhandled event type")
		return out, nil
	}

	event, err := github.ParseWebHook(d.Event, payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("invalid %s payload: %w", d.Event, err)
	}

	switch e := event.(type) {
	case *github.PushEvent:
		return r.handlePush(ctx, logger, repo, e)
	case *github.PullRequestEvent:
		err = r.recordEvent(ctx, repo, model.ActivityPullRequest, d.DeliveryID, map[string]any{
			"action":    e.GetAction(),
			"pr_number": e.GetNumber(),
			"title":     e.GetPullRequest().GetTitle(),
		})
	case *github.IssuesEvent:
		err = r.recordEvent(ctx, repo, model.ActivityIssue, d.DeliveryID, map[string]any{
			"action":       e.GetAction(),
			"issue_number": e.GetIssue().GetNumber(),
			"title":        e.GetIssue().GetTitle(),
		})
	}
	if err != nil {
		return Outcome{}, err
	}

	out.Recorded = 1
	logger.Info("Processed event")
	return out, nil
}

// payload verifies the delivery signature when a secret is configured and returns the
// JSON document, unwrapping form-encoded deliveries.
func (r *Receiver) payload(d Delivery) ([]byte, error) {
	contentType := "application/json"
	if d.ContentType != "" {
		// go-github only accepts the bare media type, without parameters such as charset.
		mediaType, _, err := mime.ParseMediaType(d.ContentType)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook content type %q: %w", d.ContentType, err)
		}
		contentType = mediaType
	}

	// go-github checks any signature it is given, so drop it when there is no secret to check against.
	signature := d.Signature
	if len(r.secret) == 0 {
		signature = ""
	}

	payload, err := github.ValidatePayloadFromBody(contentType, bytes.NewReader(d.Body), signature, r.secret)
	if err != nil {
		if len(r.secret) > 0 {
			return nil, fmt.Errorf("webhook signature rejected: %w: %w", custom_errors.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return payload, nil
}

func (r *Receiver) handlePush(ctx context.Context, logger *slog.Logger, repo model.Repository, e *github.PushEvent) (Outcome, error) {
	out := Outcome{Registered: true}

	for _, c := range e.Commits {
		inserted, err := r.store.InsertCommitActivity(ctx, database.CommitActivityParams{
			StudentID:     repo.StudentID,
			RepositoryID:  &repo.ID,
			CommitSHA:     c.GetID(),
			CommitMessage: c.GetMessage(),
			Metadata: map[string]any{
				"author_name":  c.GetAuthor().GetName(),
				"author_email": c.GetAuthor().GetEmail(),
				"url":          c.GetURL(),
			},
			OccurredAt: c.GetTimestamp().Time,
		})
		if err != nil {
			logger.Error("Failed to record commit", "sha", c.GetID(), sl.Err(err))
			continue
		}
		if inserted {
			out.Recorded++
			metrics.ActivitiesRecordedTotal.WithLabelValues(metrics.SourceWebhook, string(model.ActivityCommit)).Inc()
		}
	}

	if err := r.store.TouchRepositorySync(ctx, repo.ID, r.now()); err != nil {
		logger.Error("Failed to update repository sync time", sl.Err(err))
	}

	if repo.AssignmentID != nil && len(e.Commits) > 0 {
		latest := e.Commits[len(e.Commits)-1].GetID()
		out.AnalysisQueued = r.queueAnalysis(logger, analysis.Request{
			RepositoryID: repo.ID,
			CommitSHA:    latest,
			AssignmentID: repo.AssignmentID,
		})
	}

	logger.Info("Processed push event", "commits", len(e.Commits), "recorded", out.Recorded)
	return out, nil
}

func (r *Receiver) recordEvent(ctx context.Context, repo model.Repository, kind model.ActivityType, deliveryID string, metadata map[string]any) error {
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	err := r.store.UpsertEventActivity(ctx, database.EventActivityParams{
		StudentID:     repo.StudentID,
		RepositoryID:  &repo.ID,
		ActivityType:  kind,
		GithubEventID: deliveryID,
		Metadata:      metadata,
		OccurredAt:    r.now(),
	})
	if err != nil {
		return err
	}
	metrics.ActivitiesRecordedTotal.WithLabelValues(metrics.SourceWebhook, string(kind)).Inc()
	return nil
}

// queueAnalysis hands the analysis to the dispatcher; its outcome never affects the delivery.
func (r *Receiver) queueAnalysis(logger *slog.Logger, req analysis.Request) bool {
	err := r.dispatcher.Dispatch(dispatch.Task{
		Name: "analyze:" + req.RepositoryID + "@" + req.CommitSHA,
		Run: func(ctx context.Context) error {
			_, err := r.analyzer.Analyze(ctx, req)
			return err
		},
	})
	if err != nil {
		logger.Error("Failed to queue analysis", "commit_sha", req.CommitSHA, sl.Err(err))
		return false
	}
	logger.Info("Queued analysis", "commit_sha", req.CommitSHA)
	return true
}
