package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a uniqueness
// constraint, e.g. a second daily challenge for the same user and date.
var ErrDuplicate = errors.New("duplicate record")

// Dimensions is the fixed set of wellness dimensions, in display order.
var Dimensions = []string{"emotional", "anxiety", "spiritual", "relational", "lifestyle"}

type User struct {
	ID            string    `json:"id"`
	AuthID        string    `json:"auth_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AgeRange      string    `json:"age_range"`
	ReferralCode  string    `json:"referral_code,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type Clinician struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	ProviderType string `json:"provider_type"`
	DisplayName  string `json:"display_name"`
}

// Assessment is one submitted check-in: a score per dimension plus the raw
// answers. Immutable once created; ordered by CreatedAt per user.
type Assessment struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Scores    map[string]float64 `json:"scores"`
	Answers   map[string]any     `json:"answers"`
	CreatedAt time.Time          `json:"created_at"`
}

type Question struct {
	ID         int64  `json:"id"`
	Dimension  string `json:"dimension"`
	Prompt     string `json:"prompt"`
	Difficulty int    `json:"difficulty"`
}

// Challenge is the generated daily content for one user and calendar date
// (YYYY-MM-DD). At most one row exists per (user, date); only the completed
// flag ever changes after creation.
type Challenge struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Date           string `json:"date"`
	Affirmation    string `json:"affirmation"`
	MicroChallenge string `json:"micro_challenge"`
	ComfortPrompt  string `json:"comfort_prompt"`
	Difficulty     int    `json:"difficulty"`
	Completed      bool   `json:"completed"`
}

// Note is an append-only profile log entry. Never mutated or deleted.
type Note struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Source     string         `json:"source"`
	Structured map[string]any `json:"structured_data"`
	Text       string         `json:"note"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Summary is the rolling, lossy profile condensation for one user.
type Summary struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counts holds entity totals for the ops report.
type Counts struct {
	Users               int `json:"users"`
	Assessments         int `json:"assessments"`
	DailyChallenges     int `json:"daily_challenges"`
	CompletedChallenges int `json:"completed_challenges"`
}
