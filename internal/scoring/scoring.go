// Package scoring reduces a finished session to its result summary. Pure
// functions only; no I/O.
package scoring

import (
	"github.com/ensayo-paes/practice-service/internal/models"
)

const unclassifiedArea = "unclassified"

// Score computes the terminal SessionResult for an ordered question set.
// questions must be in session order; answers is the sparse index->key
// map; attempts contribute only timing data.
//
// correct + incorrect + unanswered always equals len(questions).
func Score(sessionID string, questions []models.Question, answers map[int]string, attempts []models.Attempt) models.SessionResult {
	result := models.SessionResult{
		SessionID:        sessionID,
		PerAreaBreakdown: make(map[string]models.AreaScore),
	}

	for i, q := range questions {
		area := unclassifiedArea
		if q.AreaTematica != nil && *q.AreaTematica != "" {
			area = *q.AreaTematica
		}
		bucket := result.PerAreaBreakdown[area]
		bucket.Total++

		answer, answered := answers[i]
		switch {
		case !answered:
			result.UnansweredCount++
		case answer == q.CorrectAnswer:
			result.CorrectCount++
			bucket.Correct++
		default:
			result.IncorrectCount++
		}

		result.PerAreaBreakdown[area] = bucket
	}

	for _, a := range attempts {
		result.TotalSecondsSpent += a.SecondsSpent
	}

	if len(questions) > 0 {
		result.AverageSecondsPerQuestion = float64(result.TotalSecondsSpent) / float64(len(questions))
	}

	return result
}
