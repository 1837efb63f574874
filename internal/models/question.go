package models

import (
	"time"

	"gorm.io/datatypes"
)

type Subject string

const (
	SubjectLenguaje   Subject = "lenguaje"
	SubjectMatematica Subject = "matematica"
	SubjectHistoria   Subject = "historia"
	SubjectCiencias   Subject = "ciencias"
)

// Question is a multiple-choice item. Immutable once fetched: the session
// engine never writes questions, only the import service does.
type Question struct {
	ID      string  `json:"id" gorm:"primaryKey;size:64"`
	Subject Subject `json:"subject" gorm:"not null;index;size:32" validate:"required"`
	Content string  `json:"content" gorm:"type:text;not null" validate:"required"`

	// Options stored as JSONB: single-letter key -> option text
	Options       datatypes.JSONType[map[string]string] `json:"options" gorm:"type:jsonb"`
	CorrectAnswer string                                `json:"correct_answer" gorm:"not null;size:1" validate:"required,len=1"`
	Explanation   *string                               `json:"explanation" gorm:"type:text"`

	// Reading-text pairing (Lenguaje-style subjects). Questions sharing a
	// ReadingTextID form a group that stays contiguous in session order.
	ReadingTextID  *string `json:"reading_text_id" gorm:"index;size:64"`
	QuestionNumber int     `json:"question_number" gorm:"default:0"`

	// Classification labels
	AreaTematica *string `json:"area_tematica" gorm:"index;size:100"`
	Tema         *string `json:"tema" gorm:"size:100"`
	Subtema      *string `json:"subtema" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasOption reports whether key is a valid option for the question.
func (q *Question) HasOption(key string) bool {
	_, ok := q.Options.Data()[key]
	return ok
}

// ReadingText is the passage a group of questions refers to. Immutable.
type ReadingText struct {
	ID        string  `json:"id" gorm:"primaryKey;size:64"`
	Title     string  `json:"title" gorm:"not null;size:300"`
	Source    *string `json:"source" gorm:"size:300"`
	Document  string  `json:"document" gorm:"not null;size:500"` // storage reference, resolved by the client
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`

	CreatedAt time.Time `json:"created_at"`
}
