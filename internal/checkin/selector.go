// Package checkin selects assessment questions weighted by a user's prior
// dimension scores: the lower the prior competence, the harder the questions
// assigned.
package checkin

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/kindredwell/kindred/internal/storage"
)

const (
	// neutralScore is assumed for any dimension the user has never scored.
	neutralScore = 3.0

	// poolSize is how many catalog entries closest to the target difficulty
	// stay in the draw pool.
	poolSize = 10

	// sampleSize caps the questions returned per dimension.
	sampleSize = 5
)

// CatalogStore is the storage surface the selector reads.
type CatalogStore interface {
	LatestScores(userID string) (map[string]float64, error)
	Questions(dimension string) ([]storage.Question, error)
}

// Selection is the selector output for one user: a sampled question set per
// dimension plus the prior scores that drove the weighting, for client display.
type Selection struct {
	Questions      map[string][]string `json:"weighted_questions"`
	PreviousScores map[string]float64  `json:"previous_scores"`
}

// Selector draws per-dimension question samples from the catalog.
type Selector struct {
	store CatalogStore
	rng   *rand.Rand
}

// NewSelector creates a Selector with its own rand source.
func NewSelector(store CatalogStore, seed int64) *Selector {
	return &Selector{store: store, rng: rand.New(rand.NewSource(seed))}
}

// TargetDifficulty maps a prior dimension score to the difficulty assigned for
// the next round: weak priors get harder questions.
func TargetDifficulty(prior float64) int {
	switch {
	case prior < 2.5:
		return 4
	case prior < 3.5:
		return 3
	default:
		return 2
	}
}

// Select builds the weighted question set for a user. A user with no
// assessment history is treated as neutral on every dimension. The catalog is
// read-only here; seeding happens at process startup.
func (s *Selector) Select(userID string) (Selection, error) {
	previous, err := s.store.LatestScores(userID)
	if errors.Is(err, storage.ErrNotFound) {
		previous = map[string]float64{}
	} else if err != nil {
		return Selection{}, fmt.Errorf("loading latest scores: %w", err)
	}

	chosen := make(map[string][]string, len(storage.Dimensions))
	for _, dim := range storage.Dimensions {
		prior, ok := previous[dim]
		if !ok {
			prior = neutralScore
		}
		target := TargetDifficulty(prior)

		pool, err := s.store.Questions(dim)
		if err != nil {
			return Selection{}, fmt.Errorf("loading %s questions: %w", dim, err)
		}

		chosen[dim] = s.sample(rankByDistance(pool, target))
	}

	return Selection{Questions: chosen, PreviousScores: previous}, nil
}

// rankByDistance orders the pool by absolute distance from the target
// difficulty, keeping catalog order among ties, and trims to poolSize.
func rankByDistance(pool []storage.Question, target int) []storage.Question {
	ranked := make([]storage.Question, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		return absDiff(ranked[i].Difficulty, target) < absDiff(ranked[j].Difficulty, target)
	})
	if len(ranked) > poolSize {
		ranked = ranked[:poolSize]
	}
	return ranked
}

// sample draws up to sampleSize prompts without replacement.
func (s *Selector) sample(pool []storage.Question) []string {
	k := sampleSize
	if len(pool) < k {
		k = len(pool)
	}
	prompts := make([]string, 0, k)
	for _, idx := range s.rng.Perm(len(pool))[:k] {
		prompts = append(prompts, pool[idx].Prompt)
	}
	return prompts
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
