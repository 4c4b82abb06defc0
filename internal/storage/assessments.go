package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveAssessment persists a submitted check-in. Scores and answers are stored
// as JSON text.
func (s *Store) SaveAssessment(a Assessment) (Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	scores, err := json.Marshal(a.Scores)
	if err != nil {
		return Assessment{}, fmt.Errorf("marshalling scores: %w", err)
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return Assessment{}, fmt.Errorf("marshalling answers: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO assessments (id, user_id, scores_json, answers_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(scores), string(answers), formatTime(a.CreatedAt),
	)
	if err != nil {
		return Assessment{}, err
	}
	return a, nil
}

// LatestScores returns the dimension scores from the user's most recent
// assessment, or ErrNotFound when the user has never submitted one.
func (s *Store) LatestScores(userID string) (map[string]float64, error) {
	var scoresJSON string
	err := s.db.QueryRow(`
		SELECT scores_json FROM assessments
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&scoresJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(scoresJSON), &scores); err != nil {
		return nil, fmt.Errorf("parsing scores: %w", err)
	}
	return scores, nil
}

// Timeline returns all assessments for a user ordered oldest first.
func (s *Store) Timeline(userID string) ([]Assessment, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, scores_json, answers_json, created_at
		FROM assessments WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Assessment
	for rows.Next() {
		var a Assessment
		var scoresJSON, answersJSON, createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &scoresJSON, &answersJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scoresJSON), &a.Scores); err != nil {
			return nil, fmt.Errorf("parsing scores for %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
			return nil, fmt.Errorf("parsing answers for %s: %w", a.ID, err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", a.ID, err)
		}
		a.CreatedAt = t
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Question bank ---

const questionsPerDimension = 20

// SeedQuestionBank populates the catalog once. Called at process startup,
// before request handling, so concurrent first requests never race the seed
// check. A non-empty catalog is left untouched.
func (s *Store) SeedQuestionBank() error {
	var existing int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM question_bank").Scan(&existing); err != nil {
		return fmt.Errorf("counting question bank: %w", err)
	}
	if existing > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, dim := range Dimensions {
		for i := 1; i <= questionsPerDimension; i++ {
			difficulty := (i + 3) / 4
			if difficulty < 1 {
				difficulty = 1
			}
			if difficulty > 5 {
				difficulty = 5
			}
			prompt := fmt.Sprintf("[%s Q%d] Reflect on how this shows up for you this week.", titleCase(dim), i)
			if _, err := tx.Exec(
				"INSERT INTO question_bank (dimension, prompt, difficulty) VALUES (?, ?, ?)",
				dim, prompt, difficulty,
			); err != nil {
				return fmt.Errorf("seeding %s question %d: %w", dim, i, err)
			}
		}
	}

	return tx.Commit()
}

// Questions returns the catalog entries for a dimension in catalog order.
func (s *Store) Questions(dimension string) ([]Question, error) {
	rows, err := s.db.Query(
		"SELECT id, dimension, prompt, difficulty FROM question_bank WHERE dimension = ? ORDER BY id ASC",
		dimension,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Dimension, &q.Prompt, &q.Difficulty); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
