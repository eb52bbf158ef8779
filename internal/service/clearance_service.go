package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type clearanceStore interface {
	ListTypes(ctx context.Context) ([]models.ClearanceType, error)
	FindType(ctx context.Context, id string) (*models.ClearanceType, error)
	CreateRequest(ctx context.Context, request *models.ClearanceRequest) error
	FindRequest(ctx context.Context, id string) (*models.ClearanceRequest, error)
	HasPending(ctx context.Context, studentID, typeID, termID string) (bool, error)
	ListPending(ctx context.Context, filter models.ClearanceFilter) ([]models.PendingClearance, error)
	UpdateDecision(ctx context.Context, id string, status models.ClearanceStatus, approverID string, reason *string) (bool, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

var oneHundred = decimal.NewFromInt(100)

// ClearanceService manages the clearance approval workflow. Eligibility is a
// recommendation computed from payment progress; the approver's decision is
// final either way and never modifies invoices.
type ClearanceService struct {
	repo     clearanceStore
	calendar activeCalendar
	audits   auditWriter
	logger   *zap.Logger
}

// NewClearanceService constructs ClearanceService.
func NewClearanceService(repo clearanceStore, calendar activeCalendar, audits auditWriter, logger *zap.Logger) *ClearanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearanceService{repo: repo, calendar: calendar, audits: audits, logger: logger}
}

// ListTypes returns the active clearance types in display order.
func (s *ClearanceService) ListTypes(ctx context.Context) ([]models.ClearanceType, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	return types, nil
}

// Request opens a pending clearance request for the active year and term.
// One pending request per (student, type, term); approved and rejected
// requests do not block a retry.
func (s *ClearanceService) Request(ctx context.Context, studentID, typeID string) (*models.ClearanceRequest, error) {
	active, err := s.calendar.ActiveContext(ctx)
	if err != nil {
		return nil, err
	}
	if active.Term == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveTerm, "")
	}

	clearanceType, err := s.repo.FindType(ctx, typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}
	if !clearanceType.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "clearance type is inactive")
	}

	pending, err := s.repo.HasPending(ctx, studentID, typeID, active.Term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "a pending request of this type already exists for the term")
	}

	request := &models.ClearanceRequest{
		StudentID:       studentID,
		ClearanceTypeID: typeID,
		AcademicYearID:  active.Year.ID,
		TermID:          active.Term.ID,
		Status:          models.ClearanceStatusPending,
	}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance request")
	}
	return request, nil
}

// ListPending returns pending requests annotated with each student's payment
// percentage and whether it meets the type's threshold.
func (s *ClearanceService) ListPending(ctx context.Context, filter models.ClearanceFilter) ([]models.PendingClearance, error) {
	pending, err := s.repo.ListPending(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending clearances")
	}
	for i := range pending {
		pending[i].PaymentPercentage = paymentPercentage(pending[i].TotalPaid, pending[i].TotalBilled)
		pending[i].Eligible = pending[i].PaymentPercentage.GreaterThanOrEqual(pending[i].MinPaymentPercentage)
	}
	return pending, nil
}

// Decide approves or rejects a pending request. Rejection requires a reason;
// approval may carry one. The decision is recorded with the approver and
// audited, and an approval below the threshold is allowed as an explicit
// override.
func (s *ClearanceService) Decide(ctx context.Context, requestID string, approve bool, reason, approverID string) (*models.ClearanceRequest, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required when rejecting a clearance request")
	}

	request, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	if request.Status != models.ClearanceStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "clearance request already decided")
	}

	status := models.ClearanceStatusRejected
	if approve {
		status = models.ClearanceStatusApproved
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	updated, err := s.repo.UpdateDecision(ctx, requestID, status, approverID, reasonPtr)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clearance decision")
	}
	if !updated {
		// Another approver decided between the read and the update.
		return nil, appErrors.Clone(appErrors.ErrConflict, "clearance request already decided")
	}

	decided, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload clearance request")
	}
	s.auditDecision(ctx, approverID, decided)
	return decided, nil
}

func (s *ClearanceService) auditDecision(ctx context.Context, approverID string, request *models.ClearanceRequest) {
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"status": request.Status,
		"reason": request.Reason,
	})
	log := &models.AuditLog{
		UserID:     &approverID,
		Action:     models.AuditActionClearanceDecide,
		Resource:   "clearance_request",
		ResourceID: &request.ID,
		NewValues:  payload,
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record clearance audit log", zap.Error(err))
	}
}

func paymentPercentage(paid, billed decimal.Decimal) decimal.Decimal {
	if billed.IsZero() {
		return decimal.Zero
	}
	return paid.Div(billed).Mul(oneHundred)
}
