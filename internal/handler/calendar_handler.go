package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jkimaru/registrar-api/internal/service"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
	"github.com/jkimaru/registrar-api/pkg/response"
)

// CalendarHandler exposes the academic calendar registry.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler creates a new handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Active godoc
// @Summary Active calendar context
// @Description Returns the active academic year and, when set, the active term
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/active [get]
func (h *CalendarHandler) Active(c *gin.Context) {
	active, err := h.service.ActiveContext(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, active, nil)
}

// ListYears godoc
// @Summary List academic years
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/years [get]
func (h *CalendarHandler) ListYears(c *gin.Context) {
	years, err := h.service.ListYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// CreateYear godoc
// @Summary Create academic year
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CreateYearRequest true "Year payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/years [post]
func (h *CalendarHandler) CreateYear(c *gin.Context) {
	var req service.CreateYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid year payload"))
		return
	}
	year, err := h.service.CreateYear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// ActivateYear godoc
// @Summary Activate academic year
// @Description Deactivates the current active year and activates the target in one transaction
// @Tags Calendar
// @Produce json
// @Param id path string true "Year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/years/{id}/activate [post]
func (h *CalendarHandler) ActivateYear(c *gin.Context) {
	year, err := h.service.ActivateYear(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// GetYear godoc
// @Summary Get academic year
// @Tags Calendar
// @Produce json
// @Param id path string true "Year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/years/{id} [get]
func (h *CalendarHandler) GetYear(c *gin.Context) {
	year, err := h.service.GetYear(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// ListTerms godoc
// @Summary List terms of a year
// @Tags Calendar
// @Produce json
// @Param id path string true "Year ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/years/{id}/terms [get]
func (h *CalendarHandler) ListTerms(c *gin.Context) {
	terms, err := h.service.ListTerms(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// CreateTerm godoc
// @Summary Create term
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/terms [post]
func (h *CalendarHandler) CreateTerm(c *gin.Context) {
	var req service.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid term payload"))
		return
	}
	term, err := h.service.CreateTerm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// ActivateTerm godoc
// @Summary Activate term
// @Description Deactivates sibling terms within the year and activates the target in one transaction
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/terms/{id}/activate [post]
func (h *CalendarHandler) ActivateTerm(c *gin.Context) {
	term, err := h.service.ActivateTerm(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}
