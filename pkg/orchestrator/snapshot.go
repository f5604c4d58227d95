package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// JobSnapshot renders the intake as field lines for prompt templates. Absent
// fields are listed as (not set) so the model sees the full vocabulary.
func JobSnapshot(job *models.Job) string {
	var b strings.Builder
	all := append(append([]string{}, models.RequiredFieldIDs...), models.OptionalFieldIDs...)
	for _, id := range all {
		fmt.Fprintf(&b, "%s: %s\n", id, fieldText(&job.Intake, id))
	}
	if job.Intake.SalaryMin > 0 || job.Intake.SalaryMax > 0 {
		fmt.Fprintf(&b, "salary: %d-%d %s per %s\n",
			job.Intake.SalaryMin, job.Intake.SalaryMax,
			job.Intake.SalaryCurrency, job.Intake.SalaryPeriod)
	}
	return b.String()
}

func fieldText(intake *models.JobIntake, fieldID string) string {
	switch v := intake.FieldValue(fieldID).(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "(not set)"
		}
		return v
	case []string:
		if len(v) == 0 {
			return "(not set)"
		}
		return strings.Join(v, "; ")
	case int:
		if v == 0 {
			return "(not set)"
		}
		return fmt.Sprintf("%d", v)
	}
	return "(not set)"
}

// SuggestionsSnapshot renders current candidates for prompt templates.
func SuggestionsSnapshot(doc *models.SuggestionDoc) string {
	if doc == nil || len(doc.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	all := append(append([]string{}, models.RequiredFieldIDs...), models.OptionalFieldIDs...)
	for _, id := range all {
		c, ok := doc.Candidates[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s (confidence %.2f)\n", id, c.Proposal, c.Confidence)
	}
	return b.String()
}

// RefinementSnapshot renders the polished posting for prompt templates.
func RefinementSnapshot(doc *models.RefinementDoc) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	all := append(append([]string{}, models.RequiredFieldIDs...), models.OptionalFieldIDs...)
	for _, id := range all {
		text := fieldText(&doc.RefinedJob, id)
		if text == "(not set)" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", id, text)
	}
	if doc.Summary != "" {
		fmt.Fprintf(&b, "summary: %s\n", doc.Summary)
	}
	return b.String()
}

// ConversationSnapshot renders chat messages for the agent prompt.
func ConversationSnapshot(msgs []models.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
