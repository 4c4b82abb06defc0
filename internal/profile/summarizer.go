// Package profile maintains the rolling per-user profile: an append-only note
// log and a compact summary that downstream prompts inject as context.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kindredwell/kindred/internal/storage"
)

const (
	condensePersona = "You create concise mental wellness profile summaries for product personalization."

	condenseMaxTokens = 220

	// maxSummaryChars caps the rolling summary on the deterministic append
	// path; the oracle condense path targets far less.
	maxSummaryChars = 4000

	// maxCondensedChars bounds the fallback when the oracle cannot condense.
	maxCondensedChars = 1200
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Store defines the storage operations the Summarizer needs.
// Implemented by storage.Store.
type Store interface {
	AppendNote(n storage.Note) (storage.Note, error)
	GetSummary(userID string) (storage.Summary, error)
	SetSummary(userID, text string, now time.Time) error
}

// Completer is the oracle capability used to condense notes into a summary.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) string
}

// Summarizer keeps the user profile current as assessments and notes arrive.
type Summarizer struct {
	store  Store
	oracle Completer
	clock  Clock
}

// NewSummarizer creates a Summarizer using the wall clock.
func NewSummarizer(store Store, completer Completer) *Summarizer {
	return &Summarizer{store: store, oracle: completer, clock: realClock{}}
}

// NewSummarizerWithClock creates a Summarizer with a custom clock (for testing).
func NewSummarizerWithClock(store Store, completer Completer, clock Clock) *Summarizer {
	return &Summarizer{store: store, oracle: completer, clock: clock}
}

// RecordAssessment logs a scored assessment and appends the score line to the
// rolling summary. This path never calls the oracle: score updates must land
// deterministically even when the oracle is down.
func (s *Summarizer) RecordAssessment(userID string, scores map[string]float64) error {
	structured := make(map[string]any, len(scores))
	for k, v := range scores {
		structured[k] = v
	}
	_, err := s.store.AppendNote(storage.Note{
		UserID:     userID,
		Source:     "assessment",
		Text:       "Assessment submitted and scored.",
		Structured: structured,
		CreatedAt:  s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("logging assessment note: %w", err)
	}

	existing, err := s.currentSummary(userID)
	if err != nil {
		return err
	}
	updated := trimTail(strings.TrimSpace(existing+"\nLatest scores: "+formatScores(scores)), maxSummaryChars)
	if err := s.store.SetSummary(userID, updated, s.clock.Now()); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// AddNote logs a free-form note and refreshes the summary, asking the oracle
// to condense the existing summary plus the new note. When the oracle yields
// nothing the tail of the raw material is kept instead. The returned summary
// is what callers echo back as a preview.
func (s *Summarizer) AddNote(ctx context.Context, n storage.Note) (storage.Note, string, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock.Now()
	}
	note, err := s.store.AppendNote(n)
	if err != nil {
		return storage.Note{}, "", fmt.Errorf("logging note: %w", err)
	}

	existing, err := s.currentSummary(n.UserID)
	if err != nil {
		return storage.Note{}, "", err
	}
	combined := strings.TrimSpace(existing + "\n" + n.Text)
	condensed := s.condense(ctx, combined)
	if condensed == "" {
		condensed = trimTail(combined, maxCondensedChars)
	}
	if err := s.store.SetSummary(n.UserID, condensed, s.clock.Now()); err != nil {
		return storage.Note{}, "", fmt.Errorf("saving summary: %w", err)
	}
	return note, condensed, nil
}

// SummaryText returns the current summary, or empty when the user has none.
func (s *Summarizer) SummaryText(userID string) (string, error) {
	return s.currentSummary(userID)
}

func (s *Summarizer) currentSummary(userID string) (string, error) {
	sum, err := s.store.GetSummary(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading summary: %w", err)
	}
	return sum.Text, nil
}

func (s *Summarizer) condense(ctx context.Context, combined string) string {
	prompt := "Condense this user profile into 5 bullets, max 140 words total:\n" + combined
	raw := s.oracle.Complete(ctx, condensePersona, prompt, condenseMaxTokens)
	return strings.TrimSpace(raw)
}

// formatScores renders scores on a fixed, sorted layout so repeated identical
// inputs produce identical summary lines.
func formatScores(scores map[string]float64) string {
	dims := make([]string, 0, len(scores))
	for dim := range scores {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, dim+"="+strconv.FormatFloat(scores[dim], 'g', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// trimTail keeps the last max bytes of s without splitting a multi-byte
// UTF-8 character.
func trimTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
