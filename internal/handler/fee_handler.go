package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jkimaru/registrar-api/internal/service"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
	"github.com/jkimaru/registrar-api/pkg/response"
)

// FeeHandler exposes the bulk fee assignment engine.
type FeeHandler struct {
	service *service.FeeService
}

// NewFeeHandler creates a new handler.
func NewFeeHandler(svc *service.FeeService) *FeeHandler {
	return &FeeHandler{service: svc}
}

func yearTermQuery(c *gin.Context) (string, string, bool) {
	yearID := c.Query("academic_year_id")
	termID := c.Query("term_id")
	if yearID == "" || termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academic_year_id and term_id are required"))
		return "", "", false
	}
	return yearID, termID, true
}

// Preview godoc
// @Summary Preview bulk fee assignment
// @Description Read-only projection of what a commit would assign, split by student type
// @Tags Fees
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/assignments/preview [get]
func (h *FeeHandler) Preview(c *gin.Context) {
	yearID, termID, ok := yearTermQuery(c)
	if !ok {
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), yearID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Commit godoc
// @Summary Commit bulk fee assignment
// @Description Assigns fees to every unassigned student of the term; existing assignments are never overwritten
// @Tags Fees
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/assignments/commit [post]
func (h *FeeHandler) Commit(c *gin.Context) {
	yearID, termID, ok := yearTermQuery(c)
	if !ok {
		return
	}
	result, err := h.service.Commit(c.Request.Context(), yearID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateStructure godoc
// @Summary Create fee structure
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeStructureRequest true "Structure payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/structures [post]
func (h *FeeHandler) CreateStructure(c *gin.Context) {
	var req service.CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid structure payload"))
		return
	}
	structure, err := h.service.CreateStructure(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// ListStructures godoc
// @Summary List fee structures
// @Tags Fees
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/structures [get]
func (h *FeeHandler) ListStructures(c *gin.Context) {
	yearID, termID, ok := yearTermQuery(c)
	if !ok {
		return
	}
	structures, err := h.service.ListStructures(c.Request.Context(), yearID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structures, nil)
}
