package scoring

import (
	"testing"

	"github.com/ensayo-paes/practice-service/internal/models"
)

func question(id, correct string, area *string) models.Question {
	return models.Question{ID: id, CorrectAnswer: correct, AreaTematica: area}
}

func strPtr(s string) *string { return &s }

func TestScoreCountsAreComplete(t *testing.T) {
	algebra := strPtr("algebra")
	geometry := strPtr("geometria")

	questions := []models.Question{
		question("q1", "A", algebra),
		question("q2", "B", algebra),
		question("q3", "C", geometry),
		question("q4", "D", nil),
	}
	answers := map[int]string{
		0: "A", // correct
		1: "C", // incorrect
		// 2 unanswered
		3: "D", // correct
	}

	result := Score("s1", questions, answers, nil)

	if result.CorrectCount != 2 || result.IncorrectCount != 1 || result.UnansweredCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1",
			result.CorrectCount, result.IncorrectCount, result.UnansweredCount)
	}
	if total := result.CorrectCount + result.IncorrectCount + result.UnansweredCount; total != len(questions) {
		t.Errorf("counts sum to %d, want %d", total, len(questions))
	}
}

func TestScorePerAreaBreakdown(t *testing.T) {
	algebra := strPtr("algebra")

	questions := []models.Question{
		question("q1", "A", algebra),
		question("q2", "B", algebra),
		question("q3", "C", nil),
	}
	answers := map[int]string{0: "A", 1: "A", 2: "C"}

	result := Score("s1", questions, answers, nil)

	if got := result.PerAreaBreakdown["algebra"]; got.Correct != 1 || got.Total != 2 {
		t.Errorf("algebra = %d/%d, want 1/2", got.Correct, got.Total)
	}
	if got := result.PerAreaBreakdown["unclassified"]; got.Correct != 1 || got.Total != 1 {
		t.Errorf("unclassified = %d/%d, want 1/1", got.Correct, got.Total)
	}
}

func TestScoreTiming(t *testing.T) {
	questions := []models.Question{
		question("q1", "A", nil),
		question("q2", "B", nil),
	}
	attempts := []models.Attempt{
		{QuestionID: "q1", SecondsSpent: 30},
		{QuestionID: "q2", SecondsSpent: 50},
	}

	result := Score("s1", questions, map[int]string{}, attempts)

	if result.TotalSecondsSpent != 80 {
		t.Errorf("total seconds = %d, want 80", result.TotalSecondsSpent)
	}
	if result.AverageSecondsPerQuestion != 40 {
		t.Errorf("average seconds = %f, want 40", result.AverageSecondsPerQuestion)
	}
}

func TestScoreEmptyQuestionSet(t *testing.T) {
	result := Score("s1", nil, nil, nil)

	if result.AverageSecondsPerQuestion != 0 {
		t.Errorf("average for empty set = %f, want 0", result.AverageSecondsPerQuestion)
	}
}
