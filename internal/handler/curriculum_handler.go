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

// CurriculumHandler exposes subject resolution and curriculum listings.
type CurriculumHandler struct {
	service *service.CurriculumService
}

// NewCurriculumHandler creates a new handler.
func NewCurriculumHandler(svc *service.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

// Resolve godoc
// @Summary Resolve subjects for a grade level
// @Description Returns the subject set a student of the given grade level and optional stream would be enrolled in
// @Tags Curriculum
// @Produce json
// @Param grade_level query int true "Grade level"
// @Param stream query string false "Stream"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /curriculum/resolve [get]
func (h *CurriculumHandler) Resolve(c *gin.Context) {
	gradeLevel, err := strconv.Atoi(c.Query("grade_level"))
	if err != nil || gradeLevel < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grade_level must be a positive integer"))
		return
	}
	var stream *string
	if raw := c.Query("stream"); raw != "" {
		stream = &raw
	}

	subjects, warning, err := h.service.ResolveSubjects(c.Request.Context(), gradeLevel, stream)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if warning != "" {
		meta = map[string]interface{}{"warning": warning}
	}
	response.JSON(c, http.StatusOK, subjects, nil, meta)
}

// List godoc
// @Summary List curriculum subjects
// @Tags Curriculum
// @Produce json
// @Param level query string true "Curriculum level" Enums(junior, senior)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /curriculum [get]
func (h *CurriculumHandler) List(c *gin.Context) {
	level := models.CurriculumLevel(c.Query("level"))
	if level != models.CurriculumLevelJunior && level != models.CurriculumLevelSenior {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "level must be junior or senior"))
		return
	}
	subjects, err := h.service.ListCurriculum(c.Request.Context(), level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}
