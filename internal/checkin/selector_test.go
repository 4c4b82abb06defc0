package checkin

import (
	"fmt"
	"testing"

	"github.com/kindredwell/kindred/internal/storage"
)

type fakeCatalog struct {
	scores    map[string]float64
	scoresErr error
	questions map[string][]storage.Question
}

func (f *fakeCatalog) LatestScores(userID string) (map[string]float64, error) {
	if f.scoresErr != nil {
		return nil, f.scoresErr
	}
	return f.scores, nil
}

func (f *fakeCatalog) Questions(dimension string) ([]storage.Question, error) {
	return f.questions[dimension], nil
}

func seededCatalog() *fakeCatalog {
	questions := make(map[string][]storage.Question)
	for _, dim := range storage.Dimensions {
		for i := 1; i <= 20; i++ {
			questions[dim] = append(questions[dim], storage.Question{
				ID:         int64(i),
				Dimension:  dim,
				Prompt:     fmt.Sprintf("%s-q%d", dim, i),
				Difficulty: (i + 3) / 4,
			})
		}
	}
	return &fakeCatalog{questions: questions}
}

func TestTargetDifficulty(t *testing.T) {
	tests := []struct {
		prior float64
		want  int
	}{
		{1.0, 4},
		{2.49, 4},
		{2.5, 3},
		{3.0, 3},
		{3.49, 3},
		{3.5, 2},
		{5.0, 2},
	}

	for _, tt := range tests {
		if got := TargetDifficulty(tt.prior); got != tt.want {
			t.Errorf("TargetDifficulty(%v) = %d, want %d", tt.prior, got, tt.want)
		}
	}

	// Strictly decreasing across the thresholds.
	if !(TargetDifficulty(2.0) > TargetDifficulty(3.0) && TargetDifficulty(3.0) > TargetDifficulty(4.0)) {
		t.Error("target difficulty is not strictly decreasing across thresholds")
	}
}

func TestSelect_SampleSizeAndUniqueness(t *testing.T) {
	catalog := seededCatalog()
	catalog.scores = map[string]float64{"emotional": 1.0}
	sel := NewSelector(catalog, 1)

	result, err := sel.Select("user-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	for _, dim := range storage.Dimensions {
		prompts := result.Questions[dim]
		if len(prompts) != 5 {
			t.Errorf("%s: got %d prompts, want 5", dim, len(prompts))
		}
		seen := make(map[string]bool)
		for _, p := range prompts {
			if seen[p] {
				t.Errorf("%s: prompt %q repeated within one response", dim, p)
			}
			seen[p] = true
		}
	}
}

func TestSelect_WeakPriorDrawsHardQuestions(t *testing.T) {
	catalog := seededCatalog()
	catalog.scores = map[string]float64{"anxiety": 1.0} // target difficulty 4

	byPrompt := make(map[string]int)
	for _, q := range catalog.questions["anxiety"] {
		byPrompt[q.Prompt] = q.Difficulty
	}

	sel := NewSelector(catalog, 7)
	result, err := sel.Select("user-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	// The 10 entries closest to difficulty 4 in the seeded catalog all have
	// difficulty 3 or higher, so every sampled prompt must too.
	for _, p := range result.Questions["anxiety"] {
		if byPrompt[p] < 3 {
			t.Errorf("weak prior sampled easy question %q (difficulty %d)", p, byPrompt[p])
		}
	}
}

func TestSelect_NoHistoryIsNeutral(t *testing.T) {
	catalog := seededCatalog()
	catalog.scoresErr = storage.ErrNotFound
	sel := NewSelector(catalog, 3)

	result, err := sel.Select("user-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(result.PreviousScores) != 0 {
		t.Errorf("previous scores = %v, want empty for new user", result.PreviousScores)
	}
	if len(result.Questions) != len(storage.Dimensions) {
		t.Errorf("got %d dimensions, want %d", len(result.Questions), len(storage.Dimensions))
	}
}

func TestSelect_SmallPool(t *testing.T) {
	catalog := &fakeCatalog{
		questions: map[string][]storage.Question{
			"emotional": {
				{ID: 1, Dimension: "emotional", Prompt: "only-1", Difficulty: 2},
				{ID: 2, Dimension: "emotional", Prompt: "only-2", Difficulty: 3},
			},
		},
	}
	sel := NewSelector(catalog, 5)

	result, err := sel.Select("user-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(result.Questions["emotional"]) != 2 {
		t.Errorf("small pool: got %d prompts, want 2", len(result.Questions["emotional"]))
	}
	if len(result.Questions["spiritual"]) != 0 {
		t.Errorf("empty pool: got %d prompts, want 0", len(result.Questions["spiritual"]))
	}
}
