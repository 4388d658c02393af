// internal/validation/validator_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "spygit/internal/errors"
)

type analyzeRequest struct {
	RepositoryID string  `json:"repositoryId" validate:"required"`
	CommitSHA    string  `json:"commitSha" validate:"required"`
	AssignmentID *string `json:"assignmentId,omitempty"`
}

type dashboardRequest struct {
	Type string `json:"type" validate:"dashboard_type"`
}

type limitRequest struct {
	ID    string `json:"id" validate:"required"`
	Limit int    `json:"limit" validate:"max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(analyzeRequest{RepositoryID: "r1", CommitSHA: "abc"}))
	})

	t.Run("missing fields are reported by json name", func(t *testing.T) {
		err := ValidateStruct(analyzeRequest{})

		var missing *custom_errors.MissingFieldsError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"repositoryId", "commitSha"}, missing.Fields)
		assert.EqualError(t, err, "Missing required parameters: repositoryId and commitSha")
	})

	t.Run("dashboard type", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(dashboardRequest{Type: "teacher"}))
		assert.NoError(t, ValidateStruct(dashboardRequest{}))

		err := ValidateStruct(dashboardRequest{Type: "admin"})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.EqualError(t, err, "Invalid dashboard type")
	})

	t.Run("mixed failures", func(t *testing.T) {
		err := ValidateStruct(limitRequest{Limit: 500})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"field 'id' is required", "field 'limit' failed on the 'max' tag"}, verr.Errors)
	})
}
