package models

import (
	"time"
)

type SessionMode string

const (
	ModeTest   SessionMode = "test"   // per-question countdown
	ModePAES   SessionMode = "paes"   // one aggregate countdown for the whole set
	ModeReview SessionMode = "review" // untimed, answers immutable, correctness shown immediately
)

type SessionPhase string

const (
	PhaseReading   SessionPhase = "reading"
	PhaseAnswering SessionPhase = "answering"
)

// SessionConfig is fixed at session creation and never mutated afterward.
type SessionConfig struct {
	Subject Subject     `json:"subject" validate:"required"`
	Mode    SessionMode `json:"mode" validate:"required,oneof=test paes review"`

	// QuestionCount 0 means unbounded (take the whole pool).
	QuestionCount int `json:"question_count" validate:"min=0"`

	// SecondsPerQuestion 0 means untimed. In PAES mode this is the total
	// budget for the whole question set, not a per-question value.
	SecondsPerQuestion int `json:"seconds_per_question" validate:"min=0"`

	// ReadingSeconds only applies to subjects that pair questions with a
	// reading text; 0 disables the reading phase timer.
	ReadingSeconds int `json:"reading_seconds" validate:"min=0"`
}

// Timed reports whether the configured mode runs any countdown at all.
func (c SessionConfig) Timed() bool {
	return c.Mode != ModeReview && c.SecondsPerQuestion > 0
}

// UsesReadingPhase reports whether the mode presents a dedicated reading
// phase before each new reading-text group.
func (c SessionConfig) UsesReadingPhase() bool {
	return c.Mode == ModeTest || c.Mode == ModePAES
}

// PracticeSession is the central mutable entity. It is owned exclusively
// by the session orchestrator for its lifetime; a serialized copy may sit
// in the snapshot store while the student is away.
type PracticeSession struct {
	SessionID string        `json:"session_id"`
	StudentID string        `json:"student_id"`
	Config    SessionConfig `json:"config"`

	// OrderedQuestionIDs is set once by the selector (or restored verbatim
	// from a snapshot) and never reshuffled or re-filtered mid-session.
	OrderedQuestionIDs []string `json:"ordered_question_ids"`

	CurrentIndex int          `json:"current_index"`
	Phase        SessionPhase `json:"phase"`

	// Answers is sparse: an entry exists only for indices the student has
	// actually submitted.
	Answers map[int]string `json:"answers"`

	SecondsRemainingInPhase int       `json:"seconds_remaining_in_phase"`
	StartedAt               time.Time `json:"started_at"`
	Finished                bool      `json:"finished"`
}

// SessionSnapshot is the serializable subset of session state needed to
// resume it later. Shape matches what exit() persists; SavedAt drives the
// 24-hour staleness rule in the snapshot store.
type SessionSnapshot struct {
	SessionID               string         `json:"session_id"`
	StudentID               string         `json:"student_id"`
	Config                  SessionConfig  `json:"config"`
	OrderedQuestionIDs      []string       `json:"ordered_question_ids"`
	CurrentIndex            int            `json:"current_index"`
	Phase                   SessionPhase   `json:"phase"`
	Answers                 map[int]string `json:"answers"`
	SecondsRemainingInPhase int            `json:"seconds_remaining_in_phase"`
	StartedAt               time.Time      `json:"started_at"`
	SavedAt                 time.Time      `json:"saved_at"`
}
