package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/identity"
	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type studentStore interface {
	ExistsByStudentNo(ctx context.Context, studentNo string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type profileStore interface {
	UpsertProfile(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type enrollmentStore interface {
	Upsert(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndYear(ctx context.Context, studentID, yearID string) (*models.Enrollment, error)
	ListByYear(ctx context.Context, yearID, classID string) ([]models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type subjectEnrollmentStore interface {
	UpsertSubjectEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) (bool, error)
	ListSubjectEnrollments(ctx context.Context, studentID, yearID string) ([]models.SubjectEnrollment, error)
}

type subjectResolver interface {
	ResolveSubjects(ctx context.Context, gradeLevel int, stream *string) ([]models.ResolvedSubject, string, error)
}

type activeCalendar interface {
	ActiveContext(ctx context.Context) (*models.ActiveContext, error)
}

type studentFeeAssigner interface {
	AssignStudent(ctx context.Context, student *models.Student, yearID, termID string) (bool, error)
	StudentAssigned(ctx context.Context, studentID, yearID, termID string) (bool, error)
}

type studentInvoiceReader interface {
	StudentInvoiced(ctx context.Context, studentID, termID string) (bool, error)
}

// RegisterStudentRequest carries validated registration fields.
type RegisterStudentRequest struct {
	StudentNo     string             `json:"student_no" validate:"required"`
	FullName      string             `json:"full_name" validate:"required"`
	Gender        string             `json:"gender" validate:"required,oneof=male female"`
	ClassID       string             `json:"class_id" validate:"required"`
	StudentType   models.StudentType `json:"student_type" validate:"required,oneof=internal external"`
	GradeLevel    int                `json:"grade_level" validate:"required,min=1"`
	Stream        *string            `json:"stream,omitempty"`
	Email         *string            `json:"email,omitempty" validate:"omitempty,email"`
	GuardianEmail *string            `json:"guardian_email,omitempty" validate:"omitempty,email"`
	GuardianPhone *string            `json:"guardian_phone,omitempty"`
}

// RegistrationConfig carries onboarding defaults from configuration.
type RegistrationConfig struct {
	InstitutionDomain string
	InitialPassword   string
}

// RegistrationService orchestrates student onboarding: identity, profile and
// student creation are the consistent core (compensated on failure); year
// enrollment, subject enrollment and fee assignment are best-effort steps
// whose outcomes are reported individually.
type RegistrationService struct {
	students    studentStore
	profiles    profileStore
	enrollments enrollmentStore
	subjects    subjectEnrollmentStore
	resolver    subjectResolver
	calendar    activeCalendar
	fees        studentFeeAssigner
	invoices    studentInvoiceReader
	provider    identity.Provider
	cfg         RegistrationConfig
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(
	students studentStore,
	profiles profileStore,
	enrollments enrollmentStore,
	subjects subjectEnrollmentStore,
	resolver subjectResolver,
	calendar activeCalendar,
	fees studentFeeAssigner,
	invoices studentInvoiceReader,
	provider identity.Provider,
	cfg RegistrationConfig,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		students:    students,
		profiles:    profiles,
		enrollments: enrollments,
		subjects:    subjects,
		resolver:    resolver,
		calendar:    calendar,
		fees:        fees,
		invoices:    invoices,
		provider:    provider,
		cfg:         cfg,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Register provisions a student. The returned result lists every step with
// its outcome; a required-step failure yields an error instead.
func (s *RegistrationService) Register(ctx context.Context, req RegisterStudentRequest, actorID string) (*models.RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	// Pre-check before any mutation so a duplicate number never leaves an
	// orphan identity behind.
	exists, err := s.students.ExistsByStudentNo(ctx, req.StudentNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, fmt.Sprintf("student number %s already in use", req.StudentNo))
	}

	email := s.studentEmail(req)
	result := &models.RegistrationResult{StudentNo: req.StudentNo, Email: email}

	userID, err := s.provider.CreateIdentity(ctx, email, s.cfg.InitialPassword, identity.Metadata{
		FullName:           req.FullName,
		Role:               models.RoleStudent,
		MustChangePassword: true,
	})
	if err != nil {
		s.observeRegistration("identity_failed")
		return nil, err
	}
	result.UserID = userID
	result.Steps = append(result.Steps, models.StepOutcome{Step: models.StepIdentity, Required: true, Status: models.StepStatusOK})

	if err := s.profiles.UpsertProfile(ctx, &models.User{
		ID:                 userID,
		Email:              email,
		FullName:           req.FullName,
		Role:               models.RoleStudent,
		Active:             true,
		MustChangePassword: true,
	}); err != nil {
		s.compensateIdentity(ctx, userID)
		s.observeRegistration("profile_failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	result.Steps = append(result.Steps, models.StepOutcome{Step: models.StepProfile, Required: true, Status: models.StepStatusOK})

	student := &models.Student{
		ID:            userID,
		StudentNo:     req.StudentNo,
		FullName:      req.FullName,
		Gender:        req.Gender,
		ClassID:       req.ClassID,
		StudentType:   req.StudentType,
		GradeLevel:    req.GradeLevel,
		Stream:        req.Stream,
		GuardianEmail: req.GuardianEmail,
		GuardianPhone: req.GuardianPhone,
	}
	if err := s.students.Create(ctx, student); err != nil {
		s.compensateIdentity(ctx, userID)
		s.observeRegistration("student_failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student record")
	}
	result.StudentID = student.ID
	result.Steps = append(result.Steps, models.StepOutcome{Step: models.StepStudent, Required: true, Status: models.StepStatusOK})

	// From here on failures no longer fail the registration: the student
	// exists and the remaining attachments are repairable via SyncSubjects
	// and the bulk fee commit.
	result.Steps = append(result.Steps, s.enrollBestEffort(ctx, student, actorID)...)

	s.audit(ctx, actorID, student)
	s.observeRegistration("registered")
	return result, nil
}

func (s *RegistrationService) enrollBestEffort(ctx context.Context, student *models.Student, actorID string) []models.StepOutcome {
	active, err := s.calendar.ActiveContext(ctx)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNoActiveYear) {
			msg := "no active academic year"
			return []models.StepOutcome{
				{Step: models.StepEnrollment, Status: models.StepStatusSkipped, Message: msg},
				{Step: models.StepSubjects, Status: models.StepStatusSkipped, Message: msg},
				{Step: models.StepFees, Status: models.StepStatusSkipped, Message: msg},
			}
		}
		msg := "failed to resolve active calendar"
		s.logger.Warn("registration calendar lookup failed", zap.String("student_id", student.ID), zap.Error(err))
		return []models.StepOutcome{
			{Step: models.StepEnrollment, Status: models.StepStatusFailed, Message: msg},
			{Step: models.StepSubjects, Status: models.StepStatusFailed, Message: msg},
			{Step: models.StepFees, Status: models.StepStatusFailed, Message: msg},
		}
	}

	var outcomes []models.StepOutcome

	enrollment := &models.Enrollment{
		StudentID:      student.ID,
		ClassID:        student.ClassID,
		AcademicYearID: active.Year.ID,
		Status:         models.EnrollmentStatusActive,
	}
	if err := s.enrollments.Upsert(ctx, enrollment); err != nil {
		s.logger.Warn("year enrollment failed", zap.String("student_id", student.ID), zap.Error(err))
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepEnrollment, Status: models.StepStatusFailed, Message: "year enrollment failed"})
	} else {
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepEnrollment, Status: models.StepStatusOK})
	}

	count, warning, err := s.enrollSubjects(ctx, student, active, actorID)
	switch {
	case err != nil:
		s.logger.Warn("subject enrollment failed", zap.String("student_id", student.ID), zap.Error(err))
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepSubjects, Status: models.StepStatusFailed, Message: "subject enrollment failed"})
	default:
		msg := fmt.Sprintf("enrolled in %d subjects", count)
		if warning != "" {
			msg += "; " + warning
		}
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepSubjects, Status: models.StepStatusOK, Message: msg})
	}

	if active.Term == nil {
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepFees, Status: models.StepStatusSkipped, Message: "no active term"})
		return outcomes
	}
	assigned, err := s.fees.AssignStudent(ctx, student, active.Year.ID, active.Term.ID)
	switch {
	case appErrors.Is(err, appErrors.ErrNoFeeStructure):
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepFees, Status: models.StepStatusSkipped, Message: "no matching fee structure"})
	case err != nil:
		s.logger.Warn("fee assignment failed", zap.String("student_id", student.ID), zap.Error(err))
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepFees, Status: models.StepStatusFailed, Message: "fee assignment failed"})
	case !assigned:
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepFees, Status: models.StepStatusOK, Message: "fee already assigned"})
	default:
		outcomes = append(outcomes, models.StepOutcome{Step: models.StepFees, Status: models.StepStatusOK})
	}
	return outcomes
}

func (s *RegistrationService) enrollSubjects(ctx context.Context, student *models.Student, active *models.ActiveContext, actorID string) (int, string, error) {
	resolved, warning, err := s.resolver.ResolveSubjects(ctx, student.GradeLevel, student.Stream)
	if err != nil {
		return 0, "", err
	}

	var termID *string
	if active.Term != nil {
		termID = &active.Term.ID
	}

	count := 0
	for _, subject := range resolved {
		inserted, err := s.subjects.UpsertSubjectEnrollment(ctx, &models.SubjectEnrollment{
			StudentID:      student.ID,
			SubjectID:      subject.SubjectID,
			AcademicYearID: active.Year.ID,
			TermID:         termID,
			IsOptional:     subject.IsOptional,
			EnrolledBy:     actorID,
		})
		if err != nil {
			return count, warning, err
		}
		if inserted {
			count++
		}
	}
	return count, warning, nil
}

// SyncSubjects re-runs subject resolution and enrollment for a student
// against the active calendar. Safe to repeat; existing rows are untouched.
func (s *RegistrationService) SyncSubjects(ctx context.Context, studentID, actorID string) (int, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	active, err := s.calendar.ActiveContext(ctx)
	if err != nil {
		return 0, err
	}
	count, _, err := s.enrollSubjects(ctx, student, active, actorID)
	if err != nil {
		return count, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync subjects")
	}
	return count, nil
}

// ListStudents returns registered students with pagination metadata.
func (s *RegistrationService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// StudentSubjects returns a student's subject enrollments for the active year.
func (s *RegistrationService) StudentSubjects(ctx context.Context, studentID string) ([]models.SubjectEnrollment, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	active, err := s.calendar.ActiveContext(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.subjects.ListSubjectEnrollments(ctx, studentID, active.Year.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject enrollments")
	}
	return enrollments, nil
}

// StudentStatusResult summarizes where one student stands in the onboarding
// pipeline for the active calendar context.
type StudentStatusResult struct {
	Student      *models.Student    `json:"student"`
	Enrollment   *models.Enrollment `json:"enrollment,omitempty"`
	SubjectCount int                `json:"subject_count"`
	FeeAssigned  bool               `json:"fee_assigned"`
	Invoiced     bool               `json:"invoiced"`
}

// StudentStatus reports a student's onboarding state against the active
// year and term: enrollment, subject count, fee assignment and invoicing.
// Fee and invoice checks are term-scoped, so a term-less period reports
// both as false.
func (s *RegistrationService) StudentStatus(ctx context.Context, studentID string) (*StudentStatusResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	active, err := s.calendar.ActiveContext(ctx)
	if err != nil {
		return nil, err
	}

	result := &StudentStatusResult{Student: student}

	enrollment, err := s.enrollments.FindByStudentAndYear(ctx, studentID, active.Year.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Not enrolled for the active year yet.
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	default:
		result.Enrollment = enrollment
	}

	subjects, err := s.subjects.ListSubjectEnrollments(ctx, studentID, active.Year.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject enrollments")
	}
	result.SubjectCount = len(subjects)

	if active.Term != nil {
		result.FeeAssigned, err = s.fees.StudentAssigned(ctx, studentID, active.Year.ID, active.Term.ID)
		if err != nil {
			return nil, err
		}
		result.Invoiced, err = s.invoices.StudentInvoiced(ctx, studentID, active.Term.ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ListEnrollments returns enrollments for an academic year, optionally
// filtered by class. An empty year resolves to the active one.
func (s *RegistrationService) ListEnrollments(ctx context.Context, yearID, classID string) ([]models.Enrollment, error) {
	if yearID == "" {
		active, err := s.calendar.ActiveContext(ctx)
		if err != nil {
			return nil, err
		}
		yearID = active.Year.ID
	}
	enrollments, err := s.enrollments.ListByYear(ctx, yearID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// UpdateEnrollmentStatus transitions an enrollment's lifecycle state.
func (s *RegistrationService) UpdateEnrollmentStatus(ctx context.Context, enrollmentID string, status models.EnrollmentStatus) error {
	if !status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
	}
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	return nil
}

func (s *RegistrationService) studentEmail(req RegisterStudentRequest) string {
	if req.Email != nil && *req.Email != "" {
		return strings.ToLower(*req.Email)
	}
	return fmt.Sprintf("%s@%s", strings.ToLower(req.StudentNo), s.cfg.InstitutionDomain)
}

// compensateIdentity deletes an identity created by a registration whose
// required steps failed. A failed deletion cannot be auto-repaired here and
// is logged at error level as a leaked identity.
func (s *RegistrationService) compensateIdentity(ctx context.Context, userID string) {
	if err := s.provider.DeleteIdentity(ctx, userID); err != nil {
		s.logger.Error("leaked identity: compensation delete failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *RegistrationService) audit(ctx context.Context, actorID string, student *models.Student) {
	payload, _ := json.Marshal(map[string]interface{}{"id": student.ID, "student_no": student.StudentNo, "class_id": student.ClassID})
	log := &models.AuditLog{
		Action:     models.AuditActionStudentRegister,
		Resource:   "students",
		ResourceID: &student.ID,
		NewValues:  payload,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.profiles.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}
}

func (s *RegistrationService) observeRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRegistration(outcome)
	}
}
