package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jkimaru/registrar-api/internal/models"
	"github.com/jkimaru/registrar-api/internal/service"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
	"github.com/jkimaru/registrar-api/pkg/response"
)

// ClearanceHandler exposes the clearance approval workflow.
type ClearanceHandler struct {
	service *service.ClearanceService
}

// NewClearanceHandler creates a new handler.
func NewClearanceHandler(svc *service.ClearanceService) *ClearanceHandler {
	return &ClearanceHandler{service: svc}
}

// ListTypes godoc
// @Summary List clearance types
// @Tags Clearance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearance/types [get]
func (h *ClearanceHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Request godoc
// @Summary Request a clearance
// @Description Opens a pending clearance request for the active year and term
// @Tags Clearance
// @Accept json
// @Produce json
// @Param payload body object true "Student and clearance type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearance/requests [post]
func (h *ClearanceHandler) Request(c *gin.Context) {
	var req struct {
		StudentID       string `json:"student_id" binding:"required"`
		ClearanceTypeID string `json:"clearance_type_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clearance payload"))
		return
	}
	request, err := h.service.Request(c.Request.Context(), req.StudentID, req.ClearanceTypeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListPending godoc
// @Summary List pending clearance requests
// @Description Pending requests annotated with payment percentage and eligibility
// @Tags Clearance
// @Produce json
// @Param academic_year_id query string false "Academic year ID"
// @Param term_id query string false "Term ID"
// @Param clearance_type_id query string false "Clearance type ID"
// @Param class_id query string false "Class ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/pending [get]
func (h *ClearanceHandler) ListPending(c *gin.Context) {
	filter := models.ClearanceFilter{
		AcademicYearID:  c.Query("academic_year_id"),
		TermID:          c.Query("term_id"),
		ClearanceTypeID: c.Query("clearance_type_id"),
		ClassID:         c.Query("class_id"),
	}
	pending, err := h.service.ListPending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Decide godoc
// @Summary Decide a clearance request
// @Description Approves or rejects a pending request; rejection requires a reason, approval below the threshold is an explicit override
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body object true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearance/requests/{id}/decision [post]
func (h *ClearanceHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	decided, err := h.service.Decide(c.Request.Context(), c.Param("id"), req.Approve, req.Reason, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decided, nil)
}
