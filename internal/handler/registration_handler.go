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

// RegistrationHandler exposes the student onboarding pipeline.
type RegistrationHandler struct {
	service *service.RegistrationService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Register godoc
// @Summary Register a student
// @Description Provisions identity, profile and student rows, then best-effort enrollment, subject enrollment and fee assignment. The result lists every step with its outcome.
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req service.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}

	result, err := h.service.Register(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListStudents godoc
// @Summary List students
// @Tags Registration
// @Produce json
// @Param search query string false "Match against student number or name"
// @Param class_id query string false "Class ID"
// @Param student_type query string false "Student type"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *RegistrationHandler) ListStudents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.StudentFilter{
		Search:      c.Query("search"),
		ClassID:     c.Query("class_id"),
		StudentType: models.StudentType(c.Query("student_type")),
		Page:        page,
		PageSize:    pageSize,
	}
	students, pagination, err := h.service.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// StudentSubjects godoc
// @Summary List a student's subject enrollments
// @Description Returns the student's subject enrollments for the active academic year
// @Tags Registration
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/subjects [get]
func (h *RegistrationHandler) StudentSubjects(c *gin.Context) {
	enrollments, err := h.service.StudentSubjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// StudentStatus godoc
// @Summary Student onboarding status
// @Description Enrollment, subject count, fee assignment and invoicing state for the active year and term
// @Tags Registration
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status [get]
func (h *RegistrationHandler) StudentStatus(c *gin.Context) {
	status, err := h.service.StudentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// ListEnrollments godoc
// @Summary List enrollments
// @Description Enrollments for an academic year, optionally filtered by class; an empty year resolves to the active one
// @Tags Registration
// @Produce json
// @Param academic_year_id query string false "Academic year ID"
// @Param class_id query string false "Class ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *RegistrationHandler) ListEnrollments(c *gin.Context) {
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), c.Query("academic_year_id"), c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// SyncSubjects godoc
// @Summary Re-sync subject enrollments
// @Description Re-runs subject resolution and idempotently enrolls the student for the active year and term
// @Tags Registration
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/sync-subjects [post]
func (h *RegistrationHandler) SyncSubjects(c *gin.Context) {
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}

	count, err := h.service.SyncSubjects(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"enrolled": count}, nil)
}

// UpdateEnrollmentStatus godoc
// @Summary Update enrollment status
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body object true "New status"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *RegistrationHandler) UpdateEnrollmentStatus(c *gin.Context) {
	var req struct {
		Status models.EnrollmentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.UpdateEnrollmentStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
