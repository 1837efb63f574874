package services

import (
	"context"
	"io"
	"time"

	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartSessionRequest struct {
	Subject string `json:"subject" validate:"required,oneof=lenguaje matematica historia ciencias"`
	Mode    string `json:"mode" validate:"required,oneof=test paes review"`

	// QuestionCount 0 means unbounded: the session takes the whole pool.
	QuestionCount      int `json:"question_count" validate:"omitempty,min=0,max=90"`
	SecondsPerQuestion int `json:"seconds_per_question" validate:"omitempty,min=10,max=600"`
	ReadingSeconds     int `json:"reading_seconds" validate:"omitempty,max=900"`
}

type SelectAnswerRequest struct {
	Answer string `json:"answer" validate:"required,len=1"`
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer" validate:"required,len=1"`
}

// QuestionView is the student-facing projection of a question. The correct
// answer and explanation are only revealed through SubmitAnswerResponse.
type QuestionView struct {
	ID             string            `json:"id"`
	Subject        models.Subject    `json:"subject"`
	Content        string            `json:"content"`
	Options        map[string]string `json:"options"`
	QuestionNumber int               `json:"question_number"`
	ReadingTextID  *string           `json:"reading_text_id,omitempty"`
}

type ReadingTextView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Document string `json:"document"`
}

type SessionResponse struct {
	SessionID        string              `json:"session_id"`
	Subject          models.Subject      `json:"subject"`
	Mode             models.SessionMode  `json:"mode"`
	Phase            models.SessionPhase `json:"phase"`
	CurrentIndex     int                 `json:"current_index"`
	TotalQuestions   int                 `json:"total_questions"`
	SecondsRemaining int                 `json:"seconds_remaining"`
	Finished         bool                `json:"finished"`
	SelectedAnswer   string              `json:"selected_answer,omitempty"`
	Question         *QuestionView       `json:"question,omitempty"`
	ReadingText      *ReadingTextView    `json:"reading_text,omitempty"`
}

type SubmitAnswerResponse struct {
	IsCorrect     bool    `json:"is_correct"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   *string `json:"explanation,omitempty"`
}

type ResultResponse struct {
	models.SessionResult
	Attempts []models.Attempt `json:"attempts"`
}

type ImportResult struct {
	QuestionsImported int      `json:"questions_imported"`
	TextsImported     int      `json:"texts_imported"`
	SkippedRows       []int    `json:"skipped_rows,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	Duration          string   `json:"duration"`
}

type QuestionListResponse struct {
	Questions []models.Question `json:"questions"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	Size      int               `json:"size"`
}

// ===== SERVICE INTERFACES =====

// PracticeService owns the live practice sessions of all students.
type PracticeService interface {
	// Session lifecycle
	Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error)
	Resume(ctx context.Context, studentID string) (*SessionResponse, error)
	DiscardSnapshot(ctx context.Context, studentID string) error
	Get(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)

	// In-session operations
	SelectAnswer(ctx context.Context, sessionID, studentID string, req *SelectAnswerRequest) (*SessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID, studentID string, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error)
	Advance(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)
	Ready(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)
	Exit(ctx context.Context, sessionID, studentID string) error

	// Post-session operations
	Result(ctx context.Context, sessionID, studentID string) (*ResultResponse, error)
	Retry(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)

	// Lifecycle
	Shutdown(ctx context.Context) error
}

// QuestionService covers the question bank side: listing and bulk import.
type QuestionService interface {
	List(ctx context.Context, filters repositories.QuestionFilters) (*QuestionListResponse, error)
	ImportXLSX(ctx context.Context, file io.Reader, importerID string) (*ImportResult, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Practice() PracticeService
	Question() QuestionService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// sessionTouchWindow bounds how long an idle orchestrator is kept in memory
// before the janitor evicts it to its snapshot.
const sessionTouchWindow = 2 * time.Hour
