// internal/model/grading.go
package model

import (
	"encoding/json"
	"time"
)

type AssignmentStatus string

const (
	AssignmentDraft     AssignmentStatus = "draft"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentArchived  AssignmentStatus = "archived"
)

var assignmentOrder = map[AssignmentStatus]int{
	AssignmentDraft:     0,
	AssignmentActive:    1,
	AssignmentCompleted: 2,
	AssignmentArchived:  3,
}

// CanTransitionTo reports whether an assignment may move from s to next.
// The lifecycle only moves forward, one or more steps at a time.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	from, ok := assignmentOrder[s]
	if !ok {
		return false
	}
	to, ok := assignmentOrder[next]
	if !ok {
		return false
	}
	return to > from
}

type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// IsTerminal is true for completed and failed analyses.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// CanTransitionTo reports whether an analysis may move from s to next.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	switch s {
	case AnalysisPending:
		return next == AnalysisProcessing || next == AnalysisCompleted || next == AnalysisFailed
	case AnalysisProcessing:
		return next == AnalysisCompleted || next == AnalysisFailed
	default:
		return false
	}
}

// Requirement is one entry of an assignment's requirements list.
type Requirement struct {
	Description string `json:"description"`
	Topic       string `json:"topic,omitempty"`
}

type Assignment struct {
	ID           string           `json:"id"`
	BatchID      string           `json:"batch_id"`
	CreatedBy    string           `json:"created_by"`
	Title        string           `json:"title"`
	Description  *string          `json:"description"`
	DueDate      *time.Time       `json:"due_date"`
	Requirements []Requirement    `json:"requirements"`
	Rubric       json.RawMessage  `json:"rubric"`
	Status       AssignmentStatus `json:"status"`
	Topics       []string         `json:"topics"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Verdict string

const (
	VerdictMet       Verdict = "met"
	VerdictPartially Verdict = "partially"
	VerdictNotMet    Verdict = "not"
)

// RequirementVerdict is the grader's judgement on a single requirement.
type RequirementVerdict struct {
	Requirement string  `json:"requirement"`
	Status      Verdict `json:"status"`
	Evidence    string  `json:"evidence"`
}

// Analysis is one grading pass over a commit.
type Analysis struct {
	ID               string               `json:"id"`
	RepositoryID     string               `json:"repository_id"`
	AssignmentID     *string              `json:"assignment_id"`
	CommitSHA        string               `json:"commit_sha"`
	Status           AnalysisStatus       `json:"status"`
	OverallGrade     *float64             `json:"overall_grade"`
	CodeQualityScore *float64             `json:"code_quality_score"`
	RequirementsMet  []RequirementVerdict `json:"requirements_met"`
	TopicCoverage    map[string]float64   `json:"topic_coverage"`
	Feedback         *string              `json:"feedback"`
	Suggestions      []string             `json:"suggestions"`
	ErrorMessage     *string              `json:"error_message"`
	AnalyzedAt       *time.Time           `json:"analyzed_at"`
	CreatedAt        time.Time            `json:"created_at"`

	// AssignmentTitle is filled by read models that join assignments.
	AssignmentTitle *string `json:"-"`
}

// AnalysisResult is the graded outcome written when an analysis completes.
type AnalysisResult struct {
	OverallGrade     float64
	CodeQualityScore float64
	RequirementsMet  []RequirementVerdict
	TopicCoverage    map[string]float64
	Feedback         string
	Suggestions      []string
	AnalyzedAt       time.Time
}
