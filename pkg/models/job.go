package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// JobState is the wizard completion state of a job.
type JobState string

const (
	JobStateDraft              JobState = "DRAFT"
	JobStateRequiredInProgress JobState = "REQUIRED_IN_PROGRESS"
	JobStateRequiredComplete   JobState = "REQUIRED_COMPLETE"
	JobStateOptionalInProgress JobState = "OPTIONAL_IN_PROGRESS"
	JobStateOptionalComplete   JobState = "OPTIONAL_COMPLETE"
)

// Intake field ids. These double as prompt vocabulary and API delta keys.
const (
	FieldRoleTitle      = "roleTitle"
	FieldCompanyName    = "companyName"
	FieldLocation       = "location"
	FieldSeniorityLevel = "seniorityLevel"
	FieldEmploymentType = "employmentType"
	FieldWorkModel      = "workModel"
	FieldJobDescription = "jobDescription"
	FieldCoreDuties     = "coreDuties"
	FieldMustHaves      = "mustHaves"
	FieldBenefits       = "benefits"
	FieldSalaryMin      = "salaryMin"
	FieldSalaryMax      = "salaryMax"
	FieldSalaryCurrency = "salaryCurrency"
	FieldSalaryPeriod   = "salaryPeriod"
)

// RequiredFieldIDs must all be non-empty for requiredComplete.
var RequiredFieldIDs = []string{
	FieldRoleTitle,
	FieldCompanyName,
	FieldLocation,
	FieldSeniorityLevel,
	FieldEmploymentType,
	FieldJobDescription,
}

// OptionalFieldIDs count toward optionalComplete. Salary fields are intake
// data but never gate completion.
var OptionalFieldIDs = []string{
	FieldWorkModel,
	FieldCoreDuties,
	FieldMustHaves,
	FieldBenefits,
}

// JobIntake is the editable field set of a job posting.
type JobIntake struct {
	RoleTitle      string   `json:"roleTitle,omitempty"`
	CompanyName    string   `json:"companyName,omitempty"`
	Location       string   `json:"location,omitempty"`
	SeniorityLevel string   `json:"seniorityLevel,omitempty"`
	EmploymentType string   `json:"employmentType,omitempty"`
	WorkModel      string   `json:"workModel,omitempty"`
	JobDescription string   `json:"jobDescription,omitempty"`
	CoreDuties     []string `json:"coreDuties,omitempty"`
	MustHaves      []string `json:"mustHaves,omitempty"`
	Benefits       []string `json:"benefits,omitempty"`
	SalaryMin      int      `json:"salaryMin,omitempty"`
	SalaryMax      int      `json:"salaryMax,omitempty"`
	SalaryCurrency string   `json:"salaryCurrency,omitempty"`
	SalaryPeriod   string   `json:"salaryPeriod,omitempty"`
}

// FieldValue returns the intake value for a field id, or nil for unknown ids.
func (i *JobIntake) FieldValue(fieldID string) any {
	switch fieldID {
	case FieldRoleTitle:
		return i.RoleTitle
	case FieldCompanyName:
		return i.CompanyName
	case FieldLocation:
		return i.Location
	case FieldSeniorityLevel:
		return i.SeniorityLevel
	case FieldEmploymentType:
		return i.EmploymentType
	case FieldWorkModel:
		return i.WorkModel
	case FieldJobDescription:
		return i.JobDescription
	case FieldCoreDuties:
		return i.CoreDuties
	case FieldMustHaves:
		return i.MustHaves
	case FieldBenefits:
		return i.Benefits
	case FieldSalaryMin:
		return i.SalaryMin
	case FieldSalaryMax:
		return i.SalaryMax
	case FieldSalaryCurrency:
		return i.SalaryCurrency
	case FieldSalaryPeriod:
		return i.SalaryPeriod
	}
	return nil
}

// ValueProvided reports whether the field holds a usable value. Whitespace-only
// strings and empty lists count as absent.
func (i *JobIntake) ValueProvided(fieldID string) bool {
	switch v := i.FieldValue(fieldID).(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		for _, item := range v {
			if strings.TrimSpace(item) != "" {
				return true
			}
		}
		return false
	case int:
		return v != 0
	}
	return false
}

// RequiredComplete reports whether every required field is provided.
func (i *JobIntake) RequiredComplete() bool {
	for _, id := range RequiredFieldIDs {
		if !i.ValueProvided(id) {
			return false
		}
	}
	return true
}

// OptionalComplete reports whether every optional field is provided.
func (i *JobIntake) OptionalComplete() bool {
	for _, id := range OptionalFieldIDs {
		if !i.ValueProvided(id) {
			return false
		}
	}
	return true
}

// RequiredFingerprint hashes the required field values. Used by the
// suggestion cache to detect intake changes since the last success.
func (i *JobIntake) RequiredFingerprint() string {
	var b strings.Builder
	for _, id := range RequiredFieldIDs {
		if s, ok := i.FieldValue(id).(string); ok {
			b.WriteString(strings.TrimSpace(s))
		}
		b.WriteByte(0)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// StateTransition is one recorded state change.
type StateTransition struct {
	From JobState  `json:"from"`
	To   JobState  `json:"to"`
	At   time.Time `json:"at"`
}

// StateMachine is the embedded wizard state. requiredComplete always equals
// "all required fields non-empty"; the service recomputes it on every write.
type StateMachine struct {
	CurrentState     JobState          `json:"currentState"`
	RequiredComplete bool              `json:"requiredComplete"`
	OptionalComplete bool              `json:"optionalComplete"`
	History          []StateTransition `json:"history,omitempty"`
}

// Job is the root document of a posting. Never deleted, only archived.
type Job struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Intake        JobIntake    `json:"intake"`
	StateMachine  StateMachine `json:"stateMachine"`
	Status        string       `json:"status"`
	Archived      bool         `json:"archived,omitempty"`
	SchemaVersion string       `json:"schemaVersion"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// StatusForState projects the wizard state onto the coarse display status.
func StatusForState(state JobState) string {
	switch state {
	case JobStateRequiredInProgress:
		return "in_progress"
	case JobStateRequiredComplete, JobStateOptionalInProgress:
		return "ready"
	case JobStateOptionalComplete:
		return "complete"
	}
	return "draft"
}
