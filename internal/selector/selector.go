// Package selector turns a raw question pool into the ordered sequence a
// practice session runs through. Selection happens exactly once per
// session; restored sessions reuse the stored order verbatim.
package selector

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/ensayo-paes/practice-service/internal/models"
)

// ErrNoQuestionsAvailable is returned for an empty pool; callers must not
// create a session in that case.
var ErrNoQuestionsAvailable = errors.New("no questions available")

// Select builds the ordered question-ID sequence for a session.
//
// Questions sharing a reading text form a group that is kept whole and
// internally sorted by question number; the order of groups is shuffled
// with the injected rng. Ungrouped questions are shuffled individually and
// appended to fill up to desiredCount. desiredCount 0 means "everything".
//
// The pool is never mutated.
func Select(pool []models.Question, desiredCount int, rng *rand.Rand) ([]string, error) {
	if len(pool) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	// Partition into reading-text groups and the ungrouped bucket, keeping
	// first-appearance order for the group keys so shuffles are driven by
	// the rng alone and not by map iteration order.
	groups := make(map[string][]models.Question)
	var groupKeys []string
	var ungrouped []models.Question

	for _, q := range pool {
		if q.ReadingTextID == nil || *q.ReadingTextID == "" {
			ungrouped = append(ungrouped, q)
			continue
		}
		key := *q.ReadingTextID
		if _, seen := groups[key]; !seen {
			groupKeys = append(groupKeys, key)
		}
		groups[key] = append(groups[key], q)
	}

	// Within a group the order is fixed: ascending question number.
	for _, key := range groupKeys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].QuestionNumber < group[j].QuestionNumber
		})
	}

	rng.Shuffle(len(groupKeys), func(i, j int) {
		groupKeys[i], groupKeys[j] = groupKeys[j], groupKeys[i]
	})
	rng.Shuffle(len(ungrouped), func(i, j int) {
		ungrouped[i], ungrouped[j] = ungrouped[j], ungrouped[i]
	})

	ordered := make([]string, 0, len(pool))

	// Whole groups first, in shuffled order, until the target is reached.
	for _, key := range groupKeys {
		if desiredCount > 0 && len(ordered) >= desiredCount {
			break
		}
		for _, q := range groups[key] {
			ordered = append(ordered, q.ID)
		}
	}

	// Fill any remainder from the shuffled ungrouped bucket.
	for _, q := range ungrouped {
		if desiredCount > 0 && len(ordered) >= desiredCount {
			break
		}
		ordered = append(ordered, q.ID)
	}

	if desiredCount > 0 && len(ordered) > desiredCount {
		ordered = ordered[:desiredCount]
	}

	return ordered, nil
}
