package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kindredwell/kindred/internal/streak"
)

// CreateChallenge inserts a daily challenge row. The UNIQUE(user_id,
// challenge_date) constraint is the idempotency boundary: a concurrent insert
// for the same user and date reports ErrDuplicate instead of creating a
// second row, and the caller re-reads the stored record.
func (s *Store) CreateChallenge(c Challenge) (Challenge, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	res, err := s.db.Exec(`
		INSERT INTO daily_challenges (id, user_id, challenge_date, affirmation, micro_challenge, comfort_prompt, difficulty, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, challenge_date) DO NOTHING`,
		c.ID, c.UserID, c.Date, c.Affirmation, c.MicroChallenge, c.ComfortPrompt, c.Difficulty, c.Completed,
	)
	if err != nil {
		return Challenge{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Challenge{}, err
	}
	if n == 0 {
		return Challenge{}, ErrDuplicate
	}
	return c, nil
}

const challengeColumns = "id, user_id, challenge_date, affirmation, micro_challenge, comfort_prompt, difficulty, completed"

// GetChallenge returns the challenge for (user, date) or ErrNotFound.
func (s *Store) GetChallenge(userID, date string) (Challenge, error) {
	var c Challenge
	err := s.db.QueryRow(
		"SELECT "+challengeColumns+" FROM daily_challenges WHERE user_id = ? AND challenge_date = ?",
		userID, date,
	).Scan(&c.ID, &c.UserID, &c.Date, &c.Affirmation, &c.MicroChallenge, &c.ComfortPrompt, &c.Difficulty, &c.Completed)
	if err == sql.ErrNoRows {
		return Challenge{}, ErrNotFound
	}
	return c, err
}

// CompleteChallenge marks the challenge for (user, date) completed and
// advances the user's streak, all inside one transaction so concurrent
// completions cannot lose an update. Re-completing an already-completed
// challenge is a no-op that returns the current streak unchanged.
func (s *Store) CompleteChallenge(userID, date string, now time.Time) (streak.State, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return streak.State{}, fmt.Errorf("beginning completion transaction: %w", err)
	}
	defer tx.Rollback()

	var challengeID string
	var completed bool
	err = tx.QueryRow(
		"SELECT id, completed FROM daily_challenges WHERE user_id = ? AND challenge_date = ?",
		userID, date,
	).Scan(&challengeID, &completed)
	if err == sql.ErrNoRows {
		return streak.State{}, ErrNotFound
	}
	if err != nil {
		return streak.State{}, err
	}

	prev, err := getStreakTx(tx, userID)
	if err != nil {
		return streak.State{}, err
	}

	if completed {
		// Already counted; return current state without advancing.
		if prev == nil {
			return streak.State{UserID: userID}, tx.Commit()
		}
		return *prev, tx.Commit()
	}

	if _, err := tx.Exec("UPDATE daily_challenges SET completed = 1 WHERE id = ?", challengeID); err != nil {
		return streak.State{}, fmt.Errorf("marking challenge completed: %w", err)
	}

	next := streak.Advance(prev, now)
	next.UserID = userID
	if _, err := tx.Exec(`
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_completed_at = excluded.last_completed_at`,
		next.UserID, next.Current, next.Longest, formatTime(next.LastCompletedAt),
	); err != nil {
		return streak.State{}, fmt.Errorf("saving streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return streak.State{}, fmt.Errorf("committing completion: %w", err)
	}
	return next, nil
}

func getStreakTx(tx *sql.Tx, userID string) (*streak.State, error) {
	var st streak.State
	var last string
	err := tx.QueryRow(
		"SELECT user_id, current_streak, longest_streak, last_completed_at FROM streaks WHERE user_id = ?",
		userID,
	).Scan(&st.UserID, &st.Current, &st.Longest, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := parseTime(last)
	if err != nil {
		return nil, fmt.Errorf("parsing last_completed_at: %w", err)
	}
	st.LastCompletedAt = t
	return &st, nil
}

// GetStreak returns the user's streak state, or ErrNotFound before the first
// completion (the row is never created until then).
func (s *Store) GetStreak(userID string) (streak.State, error) {
	var st streak.State
	var last string
	err := s.db.QueryRow(
		"SELECT user_id, current_streak, longest_streak, last_completed_at FROM streaks WHERE user_id = ?",
		userID,
	).Scan(&st.UserID, &st.Current, &st.Longest, &last)
	if err == sql.ErrNoRows {
		return streak.State{}, ErrNotFound
	}
	if err != nil {
		return streak.State{}, err
	}
	t, err := parseTime(last)
	if err != nil {
		return streak.State{}, fmt.Errorf("parsing last_completed_at: %w", err)
	}
	st.LastCompletedAt = t
	return st, nil
}
