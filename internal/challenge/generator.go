// Package challenge generates the per-day personalized challenge content.
// The oracle is asked for strict JSON; every field degrades independently to a
// fixed fallback, so a dead or rambling oracle still produces a usable
// challenge.
package challenge

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/kindredwell/kindred/internal/oracle"
	"github.com/kindredwell/kindred/internal/storage"
)

const (
	systemPersona = "You generate personalized daily mental wellness content."

	maxOutputTokens = 260

	defaultSummary = "New user with limited profile context."

	fallbackAffirmation = "You are building courage one moment at a time."
	fallbackMicro       = "Text one person you appreciate and tell them why."
	fallbackComfort     = "Name one conversation you have been avoiding, and write the first sentence you'd say."

	defaultDifficulty = 2
)

// Completer is the oracle capability the generator needs. An empty completion
// signals failure and triggers the fallback fields.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) string
}

// ChallengeStore is the storage surface the generator reads and writes.
type ChallengeStore interface {
	GetChallenge(userID, date string) (storage.Challenge, error)
	CreateChallenge(c storage.Challenge) (storage.Challenge, error)
	GetSummary(userID string) (storage.Summary, error)
}

// Generator produces (or replays) the daily challenge for a user and date.
type Generator struct {
	store  ChallengeStore
	oracle Completer

	// group collapses concurrent generations for the same (user, date) so at
	// most one oracle call is in flight per key. The DB uniqueness constraint
	// remains the correctness boundary; this only saves duplicate work.
	group singleflight.Group
}

// NewGenerator creates a Generator.
func NewGenerator(store ChallengeStore, completer Completer) *Generator {
	return &Generator{store: store, oracle: completer}
}

// ChallengeFor returns the challenge for (user, date), generating and
// persisting it on first request. Repeat calls return the stored record
// unchanged regardless of oracle availability.
func (g *Generator) ChallengeFor(ctx context.Context, userID, date string) (storage.Challenge, error) {
	existing, err := g.store.GetChallenge(userID, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Challenge{}, fmt.Errorf("loading challenge: %w", err)
	}

	v, err, _ := g.group.Do(userID+"|"+date, func() (any, error) {
		return g.generate(ctx, userID, date)
	})
	if err != nil {
		return storage.Challenge{}, err
	}
	return v.(storage.Challenge), nil
}

func (g *Generator) generate(ctx context.Context, userID, date string) (storage.Challenge, error) {
	summaryText := defaultSummary
	if sum, err := g.store.GetSummary(userID); err == nil && sum.Text != "" {
		summaryText = sum.Text
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Challenge{}, fmt.Errorf("loading profile summary: %w", err)
	}

	prompt := fmt.Sprintf(
		"Return strict JSON with keys: affirmation, micro_challenge, comfort_prompt, difficulty. "+
			"Difficulty must be integer 1-5. Keep tone warm and practical. "+
			"Profile context: %s", summaryText,
	)
	raw := g.oracle.Complete(ctx, systemPersona, prompt, maxOutputTokens)
	parsed := oracle.ExtractObject(raw)

	c := storage.Challenge{
		UserID:         userID,
		Date:           date,
		Affirmation:    fieldOrFallback(parsed, "affirmation", fallbackAffirmation),
		MicroChallenge: fieldOrFallback(parsed, "micro_challenge", fallbackMicro),
		ComfortPrompt:  fieldOrFallback(parsed, "comfort_prompt", fallbackComfort),
		Difficulty:     clampDifficulty(oracle.IntField(parsed, "difficulty", defaultDifficulty)),
	}

	created, err := g.store.CreateChallenge(c)
	if errors.Is(err, storage.ErrDuplicate) {
		// A concurrent request won the insert; its record is today's record.
		return g.store.GetChallenge(userID, date)
	}
	if err != nil {
		return storage.Challenge{}, fmt.Errorf("saving challenge: %w", err)
	}
	return created, nil
}

func fieldOrFallback(obj map[string]any, key, fallback string) string {
	if v := oracle.StringField(obj, key); v != "" {
		return v
	}
	return fallback
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}
