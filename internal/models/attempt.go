package models

import "time"

// Attempt is the per-question record produced as the student answers (or
// runs out of time). Consumed in bulk by the remote sink and the scoring
// aggregator.
type Attempt struct {
	QuestionID string  `json:"question_id"`
	Subject    Subject `json:"subject"`

	// Classification labels copied from the question at answer time
	AreaTematica *string `json:"area_tematica"`
	Tema         *string `json:"tema"`
	Subtema      *string `json:"subtema"`

	// Answer is empty when the question timed out with nothing staged.
	Answer       string    `json:"answer"`
	IsCorrect    bool      `json:"is_correct"`
	SecondsSpent int       `json:"seconds_spent"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// AreaScore is one slice of the per-area breakdown in a SessionResult.
type AreaScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// SessionResult is computed once when a session finishes and is read-only
// thereafter.
type SessionResult struct {
	SessionID       string `json:"session_id"`
	CorrectCount    int    `json:"correct_count"`
	IncorrectCount  int    `json:"incorrect_count"`
	UnansweredCount int    `json:"unanswered_count"`

	PerAreaBreakdown map[string]AreaScore `json:"per_area_breakdown"`

	TotalSecondsSpent         int     `json:"total_seconds_spent"`
	AverageSecondsPerQuestion float64 `json:"average_seconds_per_question"`
}
