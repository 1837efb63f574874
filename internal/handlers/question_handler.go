package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
	"github.com/ensayo-paes/practice-service/internal/services"
	"github.com/ensayo-paes/practice-service/internal/utils"
)

// maxImportSize caps uploaded workbooks at 20 MiB.
const maxImportSize = 20 << 20

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
	}
}

// ListQuestions lists questions with optional filters.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	h.LogRequest(c, "Listing questions")

	filters := h.parseQuestionFilters(c)
	resp, err := h.questionService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ImportQuestions loads a question workbook uploaded as multipart form
// field "file".
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	h.LogRequest(c, "Importing question workbook")

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: "File too large",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.questionService.ImportXLSX(c.Request.Context(), file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *QuestionHandler) parseQuestionFilters(c *gin.Context) repositories.QuestionFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)

	filters := repositories.QuestionFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if subject := strings.TrimSpace(c.Query("subject")); subject != "" {
		s := models.Subject(subject)
		filters.Subject = &s
	}
	if area := strings.TrimSpace(c.Query("area_tematica")); area != "" {
		filters.AreaTematica = &area
	}
	if textID := strings.TrimSpace(c.Query("reading_text_id")); textID != "" {
		filters.ReadingTextID = &textID
	}

	return filters
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func (h *QuestionHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrImportEmptyFile):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Workbook contains no usable rows",
		})
	case errors.Is(err, services.ErrImportInvalidFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Workbook has an invalid format",
			Details: err.Error(),
		})
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
