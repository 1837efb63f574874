package selector

import (
	"math/rand"
	"testing"

	"github.com/ensayo-paes/practice-service/internal/models"
)

func strPtr(s string) *string { return &s }

func groupedQuestion(id, textID string, number int) models.Question {
	return models.Question{ID: id, ReadingTextID: strPtr(textID), QuestionNumber: number}
}

func plainQuestion(id string) models.Question {
	return models.Question{ID: id}
}

func TestSelectEmptyPool(t *testing.T) {
	_, err := Select(nil, 10, rand.New(rand.NewSource(1)))
	if err != ErrNoQuestionsAvailable {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
}

func TestSelectGroupsStayWholeAndSorted(t *testing.T) {
	// Two reading-text groups, deliberately out of order in the pool, plus
	// a few standalone questions.
	pool := []models.Question{
		groupedQuestion("t1-q3", "t1", 3),
		plainQuestion("p1"),
		groupedQuestion("t2-q2", "t2", 2),
		groupedQuestion("t1-q1", "t1", 1),
		plainQuestion("p2"),
		groupedQuestion("t2-q1", "t2", 1),
		groupedQuestion("t1-q2", "t1", 2),
		plainQuestion("p3"),
	}

	ordered, err := Select(pool, 0, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordered) != len(pool) {
		t.Fatalf("expected %d questions, got %d", len(pool), len(ordered))
	}

	// Each group must appear contiguously and in question-number order.
	wantGroups := map[string][]string{
		"t1": {"t1-q1", "t1-q2", "t1-q3"},
		"t2": {"t2-q1", "t2-q2"},
	}
	for name, want := range wantGroups {
		start := -1
		for i, id := range ordered {
			if id == want[0] {
				start = i
				break
			}
		}
		if start < 0 {
			t.Fatalf("group %s: first question not found in %v", name, ordered)
		}
		for offset, wantID := range want {
			if got := ordered[start+offset]; got != wantID {
				t.Errorf("group %s: position %d expected %s, got %s (order %v)",
					name, start+offset, wantID, got, ordered)
			}
		}
	}
}

func TestSelectDesiredCountTruncates(t *testing.T) {
	var pool []models.Question
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		pool = append(pool, plainQuestion(id))
	}

	ordered, err := Select(pool, 4, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordered) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(ordered))
	}

	seen := make(map[string]bool)
	for _, id := range ordered {
		if seen[id] {
			t.Errorf("duplicate question %s in order", id)
		}
		seen[id] = true
	}
}

func TestSelectDesiredCountLargerThanPool(t *testing.T) {
	pool := []models.Question{plainQuestion("a"), plainQuestion("b")}

	ordered, err := Select(pool, 10, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordered) != 2 {
		t.Errorf("expected the whole pool (2), got %d", len(ordered))
	}
}

func TestSelectDeterministicForSeed(t *testing.T) {
	pool := []models.Question{
		groupedQuestion("t1-q1", "t1", 1),
		groupedQuestion("t1-q2", "t1", 2),
		groupedQuestion("t2-q1", "t2", 1),
		plainQuestion("p1"),
		plainQuestion("p2"),
		plainQuestion("p3"),
	}

	first, err := Select(pool, 0, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Select(pool, 0, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs disagree on length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", first, second)
		}
	}
}

func TestSelectDoesNotMutatePool(t *testing.T) {
	pool := []models.Question{
		groupedQuestion("t1-q2", "t1", 2),
		groupedQuestion("t1-q1", "t1", 1),
		plainQuestion("p1"),
	}
	var originalIDs []string
	for _, q := range pool {
		originalIDs = append(originalIDs, q.ID)
	}

	if _, err := Select(pool, 0, rand.New(rand.NewSource(5))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, q := range pool {
		if q.ID != originalIDs[i] {
			t.Fatalf("pool was reordered: %v", pool)
		}
	}
}
