package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
)

func newJobService(t *testing.T) *JobService {
	t.Helper()
	return NewJobService(docstore.NewMemoryStore())
}

func TestCreateJobStartsInDraft(t *testing.T) {
	svc := newJobService(t)

	job, err := svc.Create(context.Background(), "user-1", models.JobIntake{})
	require.NoError(t, err)

	assert.Equal(t, models.JobStateDraft, job.StateMachine.CurrentState)
	assert.Equal(t, "draft", job.Status)
	assert.False(t, job.StateMachine.RequiredComplete)
	assert.Equal(t, models.SchemaVersion, job.SchemaVersion)
}

func TestApplyFieldDeltasAdvancesState(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, "user-1", models.JobIntake{})
	require.NoError(t, err)

	job, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{
		models.FieldRoleTitle: "Backend Engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateRequiredInProgress, job.StateMachine.CurrentState)
	assert.Equal(t, "in_progress", job.Status)

	job, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{
		models.FieldCompanyName:    "Acme GmbH",
		models.FieldLocation:       "Berlin",
		models.FieldSeniorityLevel: "Sr",
		models.FieldEmploymentType: "full_time",
		models.FieldJobDescription: "Build the ledger service.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateRequiredComplete, job.StateMachine.CurrentState)
	assert.True(t, job.StateMachine.RequiredComplete)
	assert.Equal(t, "ready", job.Status)
	assert.Equal(t, "senior", job.Intake.SeniorityLevel, "seniority is normalized on write")

	// One optional field moves to OPTIONAL_IN_PROGRESS, all four to complete.
	job, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{
		models.FieldWorkModel: "hybrid",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateOptionalInProgress, job.StateMachine.CurrentState)

	job, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{
		models.FieldCoreDuties: "ship features, review code",
		models.FieldMustHaves:  []any{"Go", "PostgreSQL"},
		models.FieldBenefits:   []string{"30 days PTO"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateOptionalComplete, job.StateMachine.CurrentState)
	assert.Equal(t, "complete", job.Status)
	assert.Equal(t, []string{"ship features", "review code"}, job.Intake.CoreDuties,
		"prose list values are split on separators")

	// Every state move is recorded.
	require.NotEmpty(t, job.StateMachine.History)
	last := job.StateMachine.History[len(job.StateMachine.History)-1]
	assert.Equal(t, models.JobStateOptionalComplete, last.To)
}

func TestApplyFieldDeltasCanRegressState(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, "user-1", models.JobIntake{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme GmbH",
		Location:       "Berlin",
		SeniorityLevel: "senior",
		EmploymentType: "full_time",
		JobDescription: "Build things.",
	})
	require.NoError(t, err)
	require.True(t, job.StateMachine.RequiredComplete)

	job, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{
		models.FieldLocation: "",
	})
	require.NoError(t, err)
	assert.False(t, job.StateMachine.RequiredComplete)
	assert.Equal(t, models.JobStateRequiredInProgress, job.StateMachine.CurrentState)
}

func TestApplyFieldDeltasRejectsUnknownField(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, "user-1", models.JobIntake{})
	require.NoError(t, err)

	_, err = svc.ApplyFieldDeltas(ctx, "user-1", job.ID, map[string]any{"bogus": "x"})
	assert.True(t, IsValidationError(err))
}

func TestJobOwnership(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, "user-1", models.JobIntake{})
	require.NoError(t, err)

	_, err = svc.GetOwned(ctx, "user-2", job.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetOwned(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveHidesFromList(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, "user-1", models.JobIntake{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-1", models.JobIntake{})
	require.NoError(t, err)

	_, err = svc.Archive(ctx, "user-1", job.ID)
	require.NoError(t, err)

	jobs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	// Archived jobs remain readable directly.
	archived, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
}

func TestNormalizeSeniority(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Senior", "senior"},
		{"sr", "senior"},
		{"Entry Level", "junior"},
		{"VP", "executive"},
		{"head", "lead"},
		{"wizard", "wizard"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSeniority(tt.in), tt.in)
	}
}

func TestStripMarkdown(t *testing.T) {
	in := "## Done\nI updated **benefits** with `gym` access."
	assert.Equal(t, "Done\nI updated benefits with gym access.", StripMarkdown(in))
}
