package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ensayo-paes/practice-service/internal/services"
	"github.com/ensayo-paes/practice-service/internal/session"
	"github.com/ensayo-paes/practice-service/internal/store"
	"github.com/ensayo-paes/practice-service/internal/utils"
	"github.com/ensayo-paes/practice-service/internal/validator"
)

type SessionHandler struct {
	BaseHandler
	practiceService services.PracticeService
}

func NewSessionHandler(practiceService services.PracticeService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:     NewBaseHandler(logger),
		practiceService: practiceService,
	}
}

// StartSession creates a new practice session for the caller.
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting practice session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ResumeSession brings back the caller's live or snapshotted session.
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	h.LogRequest(c, "Resuming practice session")

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Resume(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DiscardSnapshot drops the caller's saved session, if any.
func (h *SessionHandler) DiscardSnapshot(c *gin.Context) {
	h.LogRequest(c, "Discarding session snapshot")

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	if err := h.practiceService.DiscardSnapshot(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Snapshot discarded",
	})
}

// GetSession returns the current state of a session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Get(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SelectAnswer stages an option on the current question.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Selecting answer", "session_id", sessionID)

	var req services.SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.SelectAnswer(c.Request.Context(), sessionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitAnswer commits an answer and returns the grading outcome.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Submitting answer", "session_id", sessionID)

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.SubmitAnswer(c.Request.Context(), sessionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AdvanceSession moves to the next question (or finishes the session).
func (h *SessionHandler) AdvanceSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Advancing session", "session_id", sessionID)

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Advance(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ReadySession ends the reading phase early.
func (h *SessionHandler) ReadySession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Ending reading phase", "session_id", sessionID)

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Ready(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ExitSession tears the session down, snapshotting it when unfinished.
func (h *SessionHandler) ExitSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Exiting session", "session_id", sessionID)

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	if err := h.practiceService.Exit(c.Request.Context(), sessionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session exited",
	})
}

// GetResult returns the terminal summary of a finished session.
func (h *SessionHandler) GetResult(c *gin.Context) {
	sessionID := c.Param("id")
	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Result(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RetrySession starts a review session over the questions the student got
// wrong in a finished session.
func (h *SessionHandler) RetrySession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Starting retry session", "session_id", sessionID)

	userID := h.requireUserID(c)
	if userID == "" {
		return
	}

	resp, err := h.practiceService.Retry(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrNoActiveSession),
		errors.Is(err, services.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Session belongs to another student",
		})
	case errors.Is(err, services.ErrSessionInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "A session is already in progress",
		})
	case errors.Is(err, services.ErrSessionNotDone):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session has not finished yet",
		})
	case errors.Is(err, services.ErrSubjectEmpty):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "No questions available for the requested subject",
		})
	case errors.Is(err, services.ErrNoRetryableErrors):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Nothing to retry: every question was answered correctly",
		})
	case errors.Is(err, services.ErrQuestionsMissing):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Saved session can no longer be resumed",
		})
	case errors.Is(err, session.ErrSessionFinished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session already finished",
		})
	case errors.Is(err, session.ErrAlreadyAnswered):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Question already answered",
		})
	case errors.Is(err, session.ErrNotAnswering):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session is not in the answering phase",
		})
	case errors.Is(err, session.ErrNotReading):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session is not in the reading phase",
		})
	case errors.Is(err, session.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer is not one of the question's options",
		})
	case errors.Is(err, store.ErrStoreNotAvailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Session persistence is temporarily unavailable",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
