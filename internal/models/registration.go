package models

// Registration step names, in pipeline order.
const (
	StepIdentity   = "identity"
	StepProfile    = "profile"
	StepStudent    = "student"
	StepEnrollment = "enrollment"
	StepSubjects   = "subjects"
	StepFees       = "fees"
)

// StepStatus is the outcome of one registration step.
type StepStatus string

const (
	StepStatusOK      StepStatus = "ok"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// StepOutcome makes the hard/soft split of the registration pipeline visible
// in the result type: required steps fail the whole call, best-effort steps
// only annotate it.
type StepOutcome struct {
	Step     string     `json:"step"`
	Required bool       `json:"required"`
	Status   StepStatus `json:"status"`
	Message  string     `json:"message,omitempty"`
}

// RegistrationResult is returned to the caller on successful registration.
type RegistrationResult struct {
	StudentID string        `json:"student_id"`
	UserID    string        `json:"user_id"`
	StudentNo string        `json:"student_no"`
	Email     string        `json:"email"`
	Steps     []StepOutcome `json:"steps"`
}
