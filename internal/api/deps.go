package api

import (
	"context"

	"github.com/kindredwell/kindred/internal/checkin"
	"github.com/kindredwell/kindred/internal/clinician"
	"github.com/kindredwell/kindred/internal/storage"
)

// QuestionSelector abstracts the adaptive check-in selector.
type QuestionSelector interface {
	Select(userID string) (checkin.Selection, error)
}

// ChallengeGenerator abstracts the daily challenge generator.
type ChallengeGenerator interface {
	ChallengeFor(ctx context.Context, userID, date string) (storage.Challenge, error)
}

// ProfileSummarizer abstracts the rolling profile maintenance.
type ProfileSummarizer interface {
	RecordAssessment(userID string, scores map[string]float64) error
	AddNote(ctx context.Context, n storage.Note) (storage.Note, string, error)
}

// DashboardBuilder abstracts the clinician dashboard assembly.
type DashboardBuilder interface {
	Dashboard(ctx context.Context, code string) (clinician.Dashboard, error)
}
