package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type feeRepository interface {
	FindStructure(ctx context.Context, yearID, termID string, studentType models.StudentType) (*models.FeeStructure, error)
	ListItems(ctx context.Context, structureID string) ([]models.FeeItem, error)
	CreateStructure(ctx context.Context, structure *models.FeeStructure, items []models.FeeItem) error
	ListStructures(ctx context.Context, yearID, termID string) ([]models.FeeStructure, error)
	ListAssignedStudentIDs(ctx context.Context, yearID, termID string) (map[string]bool, error)
	CreateAssignment(ctx context.Context, assignment *models.StudentFeeAssignment) (bool, error)
	ExistsAssignment(ctx context.Context, studentID, yearID, termID string) (bool, error)
}

type enrolledStudentReader interface {
	ListEnrolledByType(ctx context.Context, yearID string, studentType models.StudentType) ([]models.Student, error)
}

// FeeItemRequest is one line of a structure creation payload.
type FeeItemRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Amount      string  `json:"amount" validate:"required"`
	IsMandatory bool    `json:"is_mandatory"`
}

// CreateFeeStructureRequest describes a new fee structure.
type CreateFeeStructureRequest struct {
	AcademicYearID string             `json:"academic_year_id" validate:"required"`
	TermID         string             `json:"term_id" validate:"required"`
	StudentType    models.StudentType `json:"student_type" validate:"required,oneof=internal external"`
	Name           string             `json:"name" validate:"required"`
	Items          []FeeItemRequest   `json:"items" validate:"required,min=1,dive"`
}

// FeeService computes, previews and commits fee obligations.
type FeeService struct {
	repo      feeRepository
	students  enrolledStudentReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, students enrolledStudentReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, students: students, metrics: metrics, validator: validate, logger: logger}
}

// Preview is a pure read of what Commit would do: population counts per
// student type, per-student and total amounts in exact decimals, and how
// many students are already assigned (and will be skipped).
func (s *FeeService) Preview(ctx context.Context, yearID, termID string) (*models.FeeAssignmentPreview, error) {
	assigned, err := s.repo.ListAssignedStudentIDs(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}

	preview := &models.FeeAssignmentPreview{TotalExpectedRevenue: decimal.Zero}
	for _, studentType := range []models.StudentType{models.StudentTypeInternal, models.StudentTypeExternal} {
		typePreview, alreadyAssigned, err := s.previewType(ctx, yearID, termID, studentType, assigned)
		if err != nil {
			return nil, err
		}
		preview.AlreadyAssigned += alreadyAssigned
		if typePreview == nil {
			continue
		}
		preview.TotalStudents += typePreview.Count
		preview.TotalExpectedRevenue = preview.TotalExpectedRevenue.Add(typePreview.Total)
		if studentType == models.StudentTypeInternal {
			preview.Internal = typePreview
		} else {
			preview.External = typePreview
		}
	}
	return preview, nil
}

func (s *FeeService) previewType(ctx context.Context, yearID, termID string, studentType models.StudentType, assigned map[string]bool) (*models.FeeTypePreview, int, error) {
	students, err := s.students.ListEnrolledByType(ctx, yearID, studentType)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled students")
	}

	alreadyAssigned := 0
	for _, student := range students {
		if assigned[student.ID] {
			alreadyAssigned++
		}
	}

	structure, err := s.repo.FindStructure(ctx, yearID, termID, studentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No structure configured for this type: nothing to preview,
			// but already-assigned students still count.
			return nil, alreadyAssigned, nil
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	items, err := s.repo.ListItems(ctx, structure.ID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee items")
	}

	amount := models.FeeItemsTotal(items)
	return &models.FeeTypePreview{
		Count:            len(students),
		AmountPerStudent: amount,
		Total:            amount.Mul(decimal.NewFromInt(int64(len(students)))),
		StructureName:    structure.Name,
	}, alreadyAssigned, nil
}

// Commit re-derives the population and inserts assignments for students not
// already assigned. Existing assignments are never overwritten; the store's
// uniqueness constraint closes the race between concurrent commits.
func (s *FeeService) Commit(ctx context.Context, yearID, termID string) (*models.FeeCommitResult, error) {
	assigned, err := s.repo.ListAssignedStudentIDs(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}

	result := &models.FeeCommitResult{}
	for _, studentType := range []models.StudentType{models.StudentTypeInternal, models.StudentTypeExternal} {
		structure, err := s.repo.FindStructure(ctx, yearID, termID, studentType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Notes = append(result.Notes, fmt.Sprintf("no fee structure configured for %s students", studentType))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
		}
		items, err := s.repo.ListItems(ctx, structure.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee items")
		}
		amount := models.FeeItemsTotal(items)

		students, err := s.students.ListEnrolledByType(ctx, yearID, studentType)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled students")
		}
		for _, student := range students {
			if assigned[student.ID] {
				result.Skipped++
				continue
			}
			inserted, err := s.repo.CreateAssignment(ctx, &models.StudentFeeAssignment{
				StudentID:      student.ID,
				AcademicYearID: yearID,
				TermID:         termID,
				FeeStructureID: structure.ID,
				TotalAmount:    amount,
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee assignment")
			}
			if inserted {
				result.Assigned++
			} else {
				result.Skipped++
			}
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveFeeAssignments(result.Assigned)
	}
	return result, nil
}

// AssignStudent assigns the matching structure's total to one student, used
// at registration time. Returns false when the student is already assigned.
// A missing structure surfaces ErrNoFeeStructure for the caller to branch on.
func (s *FeeService) AssignStudent(ctx context.Context, student *models.Student, yearID, termID string) (bool, error) {
	structure, err := s.repo.FindStructure(ctx, yearID, termID, student.StudentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.ErrNoFeeStructure
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	items, err := s.repo.ListItems(ctx, structure.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee items")
	}
	inserted, err := s.repo.CreateAssignment(ctx, &models.StudentFeeAssignment{
		StudentID:      student.ID,
		AcademicYearID: yearID,
		TermID:         termID,
		FeeStructureID: structure.ID,
		TotalAmount:    models.FeeItemsTotal(items),
	})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee assignment")
	}
	return inserted, nil
}

// StudentAssigned reports whether a student already holds a fee assignment
// for the term.
func (s *FeeService) StudentAssigned(ctx context.Context, studentID, yearID, termID string) (bool, error) {
	assigned, err := s.repo.ExistsAssignment(ctx, studentID, yearID, termID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fee assignment")
	}
	return assigned, nil
}

// CreateStructure adds a fee structure with its items.
func (s *FeeService) CreateStructure(ctx context.Context, req CreateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}

	items := make([]models.FeeItem, 0, len(req.Items))
	for _, item := range req.Items {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil || amount.LessThanOrEqual(decimal.Zero) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "fee item amounts must be positive decimals")
		}
		items = append(items, models.FeeItem{
			Name:        item.Name,
			Description: item.Description,
			Amount:      amount,
			IsMandatory: item.IsMandatory,
		})
	}

	structure := &models.FeeStructure{
		AcademicYearID: req.AcademicYearID,
		TermID:         req.TermID,
		StudentType:    req.StudentType,
		Name:           req.Name,
	}
	if err := s.repo.CreateStructure(ctx, structure, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee structure")
	}
	return structure, nil
}

// ListStructures returns the structures configured for a (year, term).
func (s *FeeService) ListStructures(ctx context.Context, yearID, termID string) ([]models.FeeStructure, error) {
	structures, err := s.repo.ListStructures(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return structures, nil
}
