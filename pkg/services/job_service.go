package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// JobService owns all job document writes. Field merges go through
// ApplyFieldDeltas so the state machine and requiredComplete flag never
// drift from the intake.
type JobService struct {
	store docstore.Store
}

// NewJobService creates a job service over the given store.
func NewJobService(store docstore.Store) *JobService {
	return &JobService{store: store}
}

// Create persists a new draft job for the user.
func (s *JobService) Create(ctx context.Context, userID string, intake models.JobIntake) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		Intake:        intake,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	recomputeState(job, now)
	job.StateMachine.History = []models.StateTransition{{
		From: models.JobStateDraft, To: job.StateMachine.CurrentState, At: now,
	}}
	if err := s.store.Save(ctx, models.CollectionJobs, job.ID, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get loads a job by id.
func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := docstore.GetTyped[models.Job](ctx, s.store, models.CollectionJobs, jobID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// GetOwned loads a job and enforces ownership.
func (s *JobService) GetOwned(ctx context.Context, userID, jobID string) (*models.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrForbidden
	}
	return job, nil
}

// List returns all jobs owned by the user.
func (s *JobService) List(ctx context.Context, userID string) ([]*models.Job, error) {
	raws, err := s.store.List(ctx, models.CollectionJobs)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var out []*models.Job
	for _, raw := range raws {
		var job models.Job
		if err := json.Unmarshal(raw.Data, &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", raw.ID, err)
		}
		if job.UserID == userID && !job.Archived {
			j := job
			out = append(out, &j)
		}
	}
	return out, nil
}

// ApplyFieldDeltas merges intake deltas into the job, recomputes the state
// machine, and persists. UpdatedAt is monotone non-decreasing.
func (s *JobService) ApplyFieldDeltas(ctx context.Context, userID, jobID string, deltas map[string]any) (*models.Job, error) {
	job, err := s.GetOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if err := MergeIntakeDeltas(&job.Intake, deltas); err != nil {
		return nil, err
	}
	s.touch(job)
	if err := s.store.Save(ctx, models.CollectionJobs, job.ID, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", jobID, err)
	}
	return job, nil
}

// Save persists a job mutated by a caller that already holds it (copilot
// tools). The state machine is recomputed before the write.
func (s *JobService) Save(ctx context.Context, job *models.Job) error {
	s.touch(job)
	if err := s.store.Save(ctx, models.CollectionJobs, job.ID, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Archive marks the job archived. Jobs are never deleted.
func (s *JobService) Archive(ctx context.Context, userID, jobID string) (*models.Job, error) {
	job, err := s.GetOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	job.Archived = true
	s.touch(job)
	if err := s.store.Save(ctx, models.CollectionJobs, job.ID, job); err != nil {
		return nil, fmt.Errorf("archive job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *JobService) touch(job *models.Job) {
	now := time.Now().UTC()
	if now.Before(job.UpdatedAt) {
		now = job.UpdatedAt
	}
	job.UpdatedAt = now
	recomputeState(job, now)
}

// MergeIntakeDeltas applies field-id-keyed values onto the intake.
// String values on list fields are split on separators; seniority is
// normalized to the canonical enum.
func MergeIntakeDeltas(intake *models.JobIntake, deltas map[string]any) error {
	for fieldID, value := range deltas {
		if err := SetIntakeField(intake, fieldID, value); err != nil {
			return err
		}
	}
	return nil
}

// SetIntakeField assigns one intake field from a loosely typed value.
func SetIntakeField(intake *models.JobIntake, fieldID string, value any) error {
	asString := func() (string, error) {
		s, ok := value.(string)
		if !ok {
			return "", NewValidationError(fieldID, "expected string value")
		}
		return s, nil
	}
	asList := func() ([]string, error) {
		switch v := value.(type) {
		case []string:
			return v, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, NewValidationError(fieldID, "expected string list")
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return SplitListValue(v), nil
		}
		return nil, NewValidationError(fieldID, "expected string list")
	}
	asInt := func() (int, error) {
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		}
		return 0, NewValidationError(fieldID, "expected numeric value")
	}

	switch fieldID {
	case models.FieldRoleTitle:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.RoleTitle = v
	case models.FieldCompanyName:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.CompanyName = v
	case models.FieldLocation:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.Location = v
	case models.FieldSeniorityLevel:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.SeniorityLevel = NormalizeSeniority(v)
	case models.FieldEmploymentType:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.EmploymentType = v
	case models.FieldWorkModel:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.WorkModel = v
	case models.FieldJobDescription:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.JobDescription = v
	case models.FieldCoreDuties:
		v, err := asList()
		if err != nil {
			return err
		}
		intake.CoreDuties = v
	case models.FieldMustHaves:
		v, err := asList()
		if err != nil {
			return err
		}
		intake.MustHaves = v
	case models.FieldBenefits:
		v, err := asList()
		if err != nil {
			return err
		}
		intake.Benefits = v
	case models.FieldSalaryMin:
		v, err := asInt()
		if err != nil {
			return err
		}
		intake.SalaryMin = v
	case models.FieldSalaryMax:
		v, err := asInt()
		if err != nil {
			return err
		}
		intake.SalaryMax = v
	case models.FieldSalaryCurrency:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.SalaryCurrency = v
	case models.FieldSalaryPeriod:
		v, err := asString()
		if err != nil {
			return err
		}
		intake.SalaryPeriod = v
	default:
		return NewValidationError(fieldID, "unknown intake field")
	}
	return nil
}

// recomputeState derives the wizard state from the intake and appends a
// history entry when the state moved.
func recomputeState(job *models.Job, at time.Time) {
	intake := &job.Intake
	required := intake.RequiredComplete()
	optional := intake.OptionalComplete()

	anyRequired := false
	for _, id := range models.RequiredFieldIDs {
		if intake.ValueProvided(id) {
			anyRequired = true
			break
		}
	}
	anyOptional := false
	for _, id := range models.OptionalFieldIDs {
		if intake.ValueProvided(id) {
			anyOptional = true
			break
		}
	}

	next := models.JobStateDraft
	switch {
	case required && optional:
		next = models.JobStateOptionalComplete
	case required && anyOptional:
		next = models.JobStateOptionalInProgress
	case required:
		next = models.JobStateRequiredComplete
	case anyRequired:
		next = models.JobStateRequiredInProgress
	}

	prev := job.StateMachine.CurrentState
	if prev == "" {
		prev = models.JobStateDraft
	}
	if next != prev {
		job.StateMachine.History = append(job.StateMachine.History, models.StateTransition{
			From: prev, To: next, At: at,
		})
	}
	job.StateMachine.CurrentState = next
	job.StateMachine.RequiredComplete = required
	job.StateMachine.OptionalComplete = optional
	job.Status = models.StatusForState(next)
}
