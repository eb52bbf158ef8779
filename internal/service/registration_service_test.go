package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/identity"
	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type mockStudentStore struct {
	existing  map[string]bool
	students  map[string]*models.Student
	createErr error
	created   *models.Student
}

func (m *mockStudentStore) ExistsByStudentNo(ctx context.Context, studentNo string) (bool, error) {
	return m.existing[studentNo], nil
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	m.students[student.ID] = student
	m.created = student
	return nil
}

func (m *mockStudentStore) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

type mockProfileStore struct {
	upsertErr error
	profiles  []*models.User
	audits    []*models.AuditLog
}

func (m *mockProfileStore) UpsertProfile(ctx context.Context, user *models.User) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.profiles = append(m.profiles, user)
	return nil
}

func (m *mockProfileStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

type mockEnrollmentStore struct {
	upsertErr error
	upserts   []*models.Enrollment
	byID      map[string]*models.Enrollment
	statuses  map[string]models.EnrollmentStatus
}

func (m *mockEnrollmentStore) Upsert(ctx context.Context, enrollment *models.Enrollment) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, enrollment)
	return nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) FindByStudentAndYear(ctx context.Context, studentID, yearID string) (*models.Enrollment, error) {
	for _, e := range m.byID {
		if e.StudentID == studentID && e.AcademicYearID == yearID {
			return e, nil
		}
	}
	for _, e := range m.upserts {
		if e.StudentID == studentID && e.AcademicYearID == yearID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ListByYear(ctx context.Context, yearID, classID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.byID {
		if e.AcademicYearID != yearID {
			continue
		}
		if classID != "" && e.ClassID != classID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockEnrollmentStore) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.EnrollmentStatus)
	}
	m.statuses[id] = status
	return nil
}

type mockSubjectStore struct {
	seen map[string]bool
}

func (m *mockSubjectStore) UpsertSubjectEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) (bool, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	var term string
	if enrollment.TermID != nil {
		term = *enrollment.TermID
	}
	key := enrollment.StudentID + "|" + enrollment.SubjectID + "|" + enrollment.AcademicYearID + "|" + term
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *mockSubjectStore) ListSubjectEnrollments(ctx context.Context, studentID, yearID string) ([]models.SubjectEnrollment, error) {
	var out []models.SubjectEnrollment
	for key := range m.seen {
		parts := strings.Split(key, "|")
		if parts[0] != studentID || parts[2] != yearID {
			continue
		}
		se := models.SubjectEnrollment{StudentID: parts[0], SubjectID: parts[1], AcademicYearID: parts[2]}
		if parts[3] != "" {
			term := parts[3]
			se.TermID = &term
		}
		out = append(out, se)
	}
	return out, nil
}

type mockResolver struct {
	resolved []models.ResolvedSubject
	warning  string
	err      error
}

func (m *mockResolver) ResolveSubjects(ctx context.Context, gradeLevel int, stream *string) ([]models.ResolvedSubject, string, error) {
	return m.resolved, m.warning, m.err
}

type mockCalendar struct {
	active *models.ActiveContext
	err    error
}

func (m *mockCalendar) ActiveContext(ctx context.Context) (*models.ActiveContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.active, nil
}

type mockFeeAssigner struct {
	assigned map[string]bool
	err      error
}

func (m *mockFeeAssigner) AssignStudent(ctx context.Context, student *models.Student, yearID, termID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.assigned == nil {
		m.assigned = make(map[string]bool)
	}
	if m.assigned[student.ID] {
		return false, nil
	}
	m.assigned[student.ID] = true
	return true, nil
}

func (m *mockFeeAssigner) StudentAssigned(ctx context.Context, studentID, yearID, termID string) (bool, error) {
	return m.assigned[studentID], nil
}

type mockInvoiceReader struct {
	invoiced map[string]bool
}

func (m *mockInvoiceReader) StudentInvoiced(ctx context.Context, studentID, termID string) (bool, error) {
	return m.invoiced[studentID], nil
}

type mockIdentityProvider struct {
	created     []string
	deleted     []string
	createErr   error
	deleteErr   error
	nextID      string
	lastMeta    identity.Metadata
	lastInitial string
}

func (m *mockIdentityProvider) CreateIdentity(ctx context.Context, email, initialPassword string, meta identity.Metadata) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	id := m.nextID
	if id == "" {
		id = "user-1"
	}
	m.created = append(m.created, email)
	m.lastMeta = meta
	m.lastInitial = initialPassword
	return id, nil
}

func (m *mockIdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIdentityProvider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func y2025Context() *models.ActiveContext {
	return &models.ActiveContext{
		Year: &models.AcademicYear{ID: "y2025", Name: "2025", IsActive: true},
		Term: &models.Term{ID: "t1", AcademicYearID: "y2025", Name: "Term 1", Ordinal: 1, IsActive: true},
	}
}

func newRegistrationFixture(calendar *mockCalendar) (*RegistrationService, *mockStudentStore, *mockProfileStore, *mockEnrollmentStore, *mockSubjectStore, *mockIdentityProvider, *mockFeeAssigner) {
	students := &mockStudentStore{existing: map[string]bool{}}
	profiles := &mockProfileStore{}
	enrollments := &mockEnrollmentStore{}
	subjects := &mockSubjectStore{}
	provider := &mockIdentityProvider{}
	fees := &mockFeeAssigner{}
	invoices := &mockInvoiceReader{}
	resolver := &mockResolver{resolved: []models.ResolvedSubject{
		{SubjectID: "math", Requirement: models.RequirementCore},
		{SubjectID: "english", Requirement: models.RequirementCore},
	}}
	svc := NewRegistrationService(
		students, profiles, enrollments, subjects, resolver, calendar, fees, invoices, provider,
		RegistrationConfig{InstitutionDomain: "students.school.ac", InitialPassword: "ChangeMe123!"},
		nil, validator.New(), zap.NewNop(),
	)
	return svc, students, profiles, enrollments, subjects, provider, fees
}

func registrationRequest() RegisterStudentRequest {
	return RegisterStudentRequest{
		StudentNo:   "S-0042",
		FullName:    "Amina Yusuf",
		Gender:      "female",
		ClassID:     "class-4a",
		StudentType: models.StudentTypeInternal,
		GradeLevel:  4,
	}
}

func TestRegisterFullPipeline(t *testing.T) {
	svc, students, profiles, enrollments, _, provider, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})

	result, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, "user-1", result.StudentID)
	assert.Equal(t, "s-0042@students.school.ac", result.Email)
	assert.True(t, provider.lastMeta.MustChangePassword)
	assert.Equal(t, "ChangeMe123!", provider.lastInitial)
	require.NotNil(t, students.created)
	require.Len(t, profiles.profiles, 1)
	require.Len(t, enrollments.upserts, 1)
	assert.Equal(t, "y2025", enrollments.upserts[0].AcademicYearID)

	require.Len(t, result.Steps, 6)
	byStep := make(map[string]models.StepOutcome, len(result.Steps))
	for _, step := range result.Steps {
		byStep[step.Step] = step
	}
	for _, name := range []string{models.StepIdentity, models.StepProfile, models.StepStudent} {
		assert.True(t, byStep[name].Required, name)
		assert.Equal(t, models.StepStatusOK, byStep[name].Status, name)
	}
	assert.Equal(t, models.StepStatusOK, byStep[models.StepEnrollment].Status)
	assert.Equal(t, models.StepStatusOK, byStep[models.StepSubjects].Status)
	assert.Contains(t, byStep[models.StepSubjects].Message, "2 subjects")
	assert.Equal(t, models.StepStatusOK, byStep[models.StepFees].Status)

	require.Len(t, profiles.audits, 1)
	assert.Equal(t, models.AuditActionStudentRegister, profiles.audits[0].Action)
}

func TestRegisterDuplicateStudentNoCreatesNothing(t *testing.T) {
	svc, students, _, _, _, provider, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	students.existing["S-0042"] = true

	_, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))
	// The duplicate is rejected before any identity exists to leak.
	assert.Empty(t, provider.created)
}

func TestRegisterCompensatesIdentityOnStudentFailure(t *testing.T) {
	svc, students, _, _, _, provider, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	students.createErr = errors.New("insert failed")

	_, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.Error(t, err)
	require.Len(t, provider.created, 1)
	assert.Equal(t, []string{"user-1"}, provider.deleted)
}

func TestRegisterCompensatesIdentityOnProfileFailure(t *testing.T) {
	svc, _, profiles, _, _, provider, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	profiles.upsertErr = errors.New("profile insert failed")

	_, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.Error(t, err)
	assert.Equal(t, []string{"user-1"}, provider.deleted)
}

func TestRegisterWithoutActiveYearSkipsSoftSteps(t *testing.T) {
	svc, students, _, enrollments, _, _, _ := newRegistrationFixture(&mockCalendar{err: appErrors.ErrNoActiveYear})

	result, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.NoError(t, err)
	require.NotNil(t, students.created)
	assert.Empty(t, enrollments.upserts)

	skipped := 0
	for _, step := range result.Steps {
		if step.Status == models.StepStatusSkipped {
			skipped++
			assert.False(t, step.Required)
		}
	}
	assert.Equal(t, 3, skipped)
}

func TestRegisterWithoutActiveTermSkipsFees(t *testing.T) {
	active := y2025Context()
	active.Term = nil
	svc, _, _, _, _, _, fees := newRegistrationFixture(&mockCalendar{active: active})

	result, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.NoError(t, err)
	assert.Empty(t, fees.assigned)

	var feeStep models.StepOutcome
	for _, step := range result.Steps {
		if step.Step == models.StepFees {
			feeStep = step
		}
	}
	assert.Equal(t, models.StepStatusSkipped, feeStep.Status)
}

func TestRegisterMissingFeeStructureIsSkippedNotFailed(t *testing.T) {
	svc, _, _, _, _, _, fees := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	fees.err = appErrors.ErrNoFeeStructure

	result, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.NoError(t, err)

	var feeStep models.StepOutcome
	for _, step := range result.Steps {
		if step.Step == models.StepFees {
			feeStep = step
		}
	}
	assert.Equal(t, models.StepStatusSkipped, feeStep.Status)
	assert.Contains(t, feeStep.Message, "fee structure")
}

func TestRegisterEnrollmentFailureDoesNotFailCall(t *testing.T) {
	svc, students, _, enrollments, _, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	enrollments.upsertErr = errors.New("deadlock")

	result, err := svc.Register(context.Background(), registrationRequest(), "admin-1")
	require.NoError(t, err)
	require.NotNil(t, students.created)

	var enrollStep models.StepOutcome
	for _, step := range result.Steps {
		if step.Step == models.StepEnrollment {
			enrollStep = step
		}
	}
	assert.Equal(t, models.StepStatusFailed, enrollStep.Status)
}

func TestRegisterUsesSuppliedEmail(t *testing.T) {
	svc, _, _, _, _, provider, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	req := registrationRequest()
	email := "Amina.Yusuf@example.com"
	req.Email = &email

	result, err := svc.Register(context.Background(), req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "amina.yusuf@example.com", result.Email)
	assert.Equal(t, []string{"amina.yusuf@example.com"}, provider.created)
}

func TestSyncSubjectsIsIdempotent(t *testing.T) {
	svc, students, _, _, subjects, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	students.students = map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042", GradeLevel: 4},
	}

	count, err := svc.SyncSubjects(context.Background(), "stu-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, subjects.seen, 2)

	// Re-running resolves to the same rows and inserts nothing new.
	count, err = svc.SyncSubjects(context.Background(), "stu-1", "admin-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, subjects.seen, 2)
}

func TestSyncSubjectsTermlessPeriodIsIdempotent(t *testing.T) {
	termless := &mockCalendar{active: &models.ActiveContext{
		Year: &models.AcademicYear{ID: "y2025", Name: "2025", IsActive: true},
	}}
	svc, students, _, _, subjects, _, _ := newRegistrationFixture(termless)
	students.students = map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042", GradeLevel: 4},
	}

	count, err := svc.SyncSubjects(context.Background(), "stu-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-running with no active term must not duplicate the NULL-term rows.
	count, err = svc.SyncSubjects(context.Background(), "stu-1", "admin-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, subjects.seen, 2)
}

func TestUpdateEnrollmentStatus(t *testing.T) {
	svc, _, _, enrollments, _, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	enrollments.byID = map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", Status: models.EnrollmentStatusActive},
	}

	require.NoError(t, svc.UpdateEnrollmentStatus(context.Background(), "enr-1", models.EnrollmentStatusTransferred))
	assert.Equal(t, models.EnrollmentStatusTransferred, enrollments.statuses["enr-1"])

	err := svc.UpdateEnrollmentStatus(context.Background(), "enr-1", models.EnrollmentStatus("graduated"))
	require.Error(t, err)

	err = svc.UpdateEnrollmentStatus(context.Background(), "missing", models.EnrollmentStatusDropped)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestListStudentsDefaultsPagination(t *testing.T) {
	svc, students, _, _, _, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	students.students = map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042"},
		"stu-2": {ID: "stu-2", StudentNo: "S-0043"},
	}

	list, pagination, err := svc.ListStudents(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestStudentSubjectsScopedToActiveYear(t *testing.T) {
	svc, students, _, _, subjects, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	students.students = map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042", GradeLevel: 4},
	}
	subjects.seen = map[string]bool{
		"stu-1|math|y2025|t1":    true,
		"stu-1|english|y2024|t1": true,
		"stu-2|math|y2025|t1":    true,
	}

	enrollments, err := svc.StudentSubjects(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "math", enrollments[0].SubjectID)
	assert.Equal(t, "y2025", enrollments[0].AcademicYearID)

	_, err = svc.StudentSubjects(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentStatusReportsPipelineState(t *testing.T) {
	students := &mockStudentStore{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042", StudentType: models.StudentTypeInternal},
	}}
	enrollments := &mockEnrollmentStore{byID: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", AcademicYearID: "y2025", ClassID: "class-4a", Status: models.EnrollmentStatusActive},
	}}
	subjects := &mockSubjectStore{seen: map[string]bool{
		"stu-1|math|y2025|t1":    true,
		"stu-1|english|y2025|t1": true,
	}}
	fees := &mockFeeAssigner{assigned: map[string]bool{"stu-1": true}}
	invoices := &mockInvoiceReader{invoiced: map[string]bool{"stu-1": true}}
	svc := NewRegistrationService(
		students, &mockProfileStore{}, enrollments, subjects, &mockResolver{},
		&mockCalendar{active: y2025Context()}, fees, invoices, &mockIdentityProvider{},
		RegistrationConfig{InstitutionDomain: "students.school.ac", InitialPassword: "ChangeMe123!"},
		nil, validator.New(), zap.NewNop(),
	)

	status, err := svc.StudentStatus(context.Background(), "stu-1")
	require.NoError(t, err)
	require.NotNil(t, status.Enrollment)
	assert.Equal(t, "enr-1", status.Enrollment.ID)
	assert.Equal(t, 2, status.SubjectCount)
	assert.True(t, status.FeeAssigned)
	assert.True(t, status.Invoiced)

	_, err = svc.StudentStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentStatusTermlessSkipsFinanceChecks(t *testing.T) {
	termless := &mockCalendar{active: &models.ActiveContext{
		Year: &models.AcademicYear{ID: "y2025", Name: "2025", IsActive: true},
	}}
	svc, students, _, _, _, _, fees := newRegistrationFixture(termless)
	students.students = map[string]*models.Student{
		"stu-1": {ID: "stu-1", StudentNo: "S-0042"},
	}
	fees.assigned = map[string]bool{"stu-1": true}

	status, err := svc.StudentStatus(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Nil(t, status.Enrollment)
	assert.False(t, status.FeeAssigned)
	assert.False(t, status.Invoiced)
}

func TestListEnrollmentsDefaultsToActiveYear(t *testing.T) {
	svc, _, _, enrollments, _, _, _ := newRegistrationFixture(&mockCalendar{active: y2025Context()})
	enrollments.byID = map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", AcademicYearID: "y2025", ClassID: "class-4a"},
		"enr-2": {ID: "enr-2", StudentID: "stu-2", AcademicYearID: "y2025", ClassID: "class-4b"},
		"enr-3": {ID: "enr-3", StudentID: "stu-3", AcademicYearID: "y2024", ClassID: "class-4a"},
	}

	listed, err := svc.ListEnrollments(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = svc.ListEnrollments(context.Background(), "y2025", "class-4a")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "enr-1", listed[0].ID)
}
