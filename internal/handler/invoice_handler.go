package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jkimaru/registrar-api/internal/models"
	"github.com/jkimaru/registrar-api/internal/service"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
	"github.com/jkimaru/registrar-api/pkg/response"
)

// InvoiceHandler exposes invoice generation and payment capture.
type InvoiceHandler struct {
	service *service.InvoiceService
}

// NewInvoiceHandler creates a new handler.
func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// Preview godoc
// @Summary Preview invoice generation
// @Description Counts un-invoiced fee assignments by student type with decimal totals
// @Tags Invoices
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /invoices/preview [get]
func (h *InvoiceHandler) Preview(c *gin.Context) {
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
// @Summary Generate invoices
// @Description Generates one sequentially numbered invoice per un-invoiced fee assignment
// @Tags Invoices
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /invoices/commit [post]
func (h *InvoiceHandler) Commit(c *gin.Context) {
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

// Get godoc
// @Summary Get invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, items, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"invoice": invoice, "items": items}, nil)
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param student_id query string false "Student ID"
// @Param academic_year_id query string false "Academic year ID"
// @Param term_id query string false "Term ID"
// @Param status query string false "Status" Enums(unpaid, partial, paid)
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.InvoiceFilter{
		StudentID:      c.Query("student_id"),
		AcademicYearID: c.Query("academic_year_id"),
		TermID:         c.Query("term_id"),
		Status:         models.InvoiceStatus(c.Query("status")),
		Page:           page,
		PageSize:       pageSize,
	}
	invoices, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// RecordPayment godoc
// @Summary Record a payment
// @Description Applies a payment to an invoice, recomputing balance and status
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body object true "Payment amount"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	invoice, err := h.service.RecordPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
