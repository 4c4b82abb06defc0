package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendNote inserts an append-only profile log entry.
func (s *Store) AppendNote(n Note) (Note, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	structured := "{}"
	if n.Structured != nil {
		b, err := json.Marshal(n.Structured)
		if err != nil {
			return Note{}, fmt.Errorf("marshalling structured data: %w", err)
		}
		structured = string(b)
	}

	_, err := s.db.Exec(`
		INSERT INTO profile_notes (id, user_id, source, structured_json, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Source, structured, n.Text, formatTime(n.CreatedAt),
	)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// RecentNotes returns up to limit notes for a user, newest first.
func (s *Store) RecentNotes(userID string, limit int) ([]Note, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, source, structured_json, note, created_at
		FROM profile_notes WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Note
	for rows.Next() {
		var n Note
		var structured, createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Source, &structured, &n.Text, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(structured), &n.Structured); err != nil {
			return nil, fmt.Errorf("parsing structured data for %s: %w", n.ID, err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", n.ID, err)
		}
		n.CreatedAt = t
		results = append(results, n)
	}
	return results, rows.Err()
}

// GetSummary returns the rolling profile summary or ErrNotFound when the user
// has no summary row yet.
func (s *Store) GetSummary(userID string) (Summary, error) {
	var sum Summary
	var updatedAt string
	err := s.db.QueryRow(
		"SELECT user_id, summary, updated_at FROM profile_summaries WHERE user_id = ?", userID,
	).Scan(&sum.UserID, &sum.Text, &updatedAt)
	if err == sql.ErrNoRows {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	sum.UpdatedAt = t
	return sum, nil
}

// SetSummary overwrites the user's summary (last writer wins) and bumps its
// updated timestamp, creating the row when missing.
func (s *Store) SetSummary(userID, text string, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO profile_summaries (user_id, summary, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		userID, text, formatTime(now),
	)
	return err
}

// EntityCounts returns totals for the ops report.
func (s *Store) EntityCounts() (Counts, error) {
	var c Counts
	queries := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM users", &c.Users},
		{"SELECT COUNT(*) FROM assessments", &c.Assessments},
		{"SELECT COUNT(*) FROM daily_challenges", &c.DailyChallenges},
		{"SELECT COUNT(*) FROM daily_challenges WHERE completed = 1", &c.CompletedChallenges},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("counting: %w", err)
		}
	}
	return c, nil
}
