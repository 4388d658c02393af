// internal/analysis/prompt.go
package analysis

import (
	"fmt"
	"strings"

	"spygit/internal/model"
)

const systemPrompt = "You are an expert coding mentor analyzing student code. Provide constructive, specific feedback."

const promptTemplate = `Analyze this GitHub repository for educational purposes:

Repository: %s
Commit SHA: %s

%s

Please provide:
1. Requirements Met: Check each requirement and provide status (met/partially met/not met) with evidence
2. Topic Coverage: Identify programming topics demonstrated (OOP, APIs, Testing, Database, Auth, etc.) with percentage coverage
3. Code Quality Score: Rate the code quality (0-100) based on structure, organization, and best practices
4. Feedback: Provide constructive, encouraging feedback about what's working well
5. Suggestions: Offer 3-5 specific, actionable improvement suggestions

Return your analysis in JSON format with these exact keys:
{
  "requirementsMet": [{"requirement": "...", "status": "met/partially/not", "evidence": "..."}],
  "topicCoverage": {"OOP": 80, "APIs": 60, ...},
  "codeQualityScore": 85,
  "feedback": "Great work on...",
  "suggestions": ["Add error handling to...", ...]
}`

func buildPrompt(repoURL, commitSHA string, requirements []model.Requirement) string {
	scope := "Perform a general code quality analysis."
	if len(requirements) > 0 {
		lines := make([]string, len(requirements))
		for i, r := range requirements {
			lines[i] = fmt.Sprintf("%d. %s", i+1, r.Description)
		}
		scope = "Assignment Requirements:\n" + strings.Join(lines, "\n")
	}
	return fmt.Sprintf(promptTemplate, repoURL, commitSHA, scope)
}

// report is the JSON document the model is asked to return.
type report struct {
	RequirementsMet  []model.RequirementVerdict `json:"requirementsMet"`
	TopicCoverage    map[string]float64         `json:"topicCoverage"`
	CodeQualityScore float64                    `json:"codeQualityScore"`
	Feedback         string                     `json:"feedback"`
	Suggestions      []string                   `json:"suggestions"`
}

// stripCodeFence removes a surrounding markdown code fence, which some models add
// even when asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// overallGrade is the share of requirements marked met, or the quality score when the
// analysis had no requirements.
func overallGrade(requirements []model.Requirement, r report) float64 {
	if len(requirements) == 0 {
		return r.CodeQualityScore
	}
	met := 0
	for _, v := range r.RequirementsMet {
		if v.Status == model.VerdictMet {
			met++
		}
	}
	return float64(met) / float64(len(requirements)) * 100
}
