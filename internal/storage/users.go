package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a user row. Callers should look the user up by auth ID
// first; a duplicate auth_id or email reports ErrDuplicate.
func (s *Store) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO users (id, auth_id, email, name, age_range, referral_code, email_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		u.ID, u.AuthID, u.Email, u.Name, u.AgeRange, u.ReferralCode, u.EmailVerified, formatTime(u.CreatedAt),
	)
	if err != nil {
		return User{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if n == 0 {
		return User{}, ErrDuplicate
	}
	return u, nil
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.AuthID, &u.Email, &u.Name, &u.AgeRange, &u.ReferralCode, &u.EmailVerified, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}

const userColumns = "id, auth_id, email, name, age_range, referral_code, email_verified, created_at"

func (s *Store) GetUser(id string) (User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *Store) GetUserByAuthID(authID string) (User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE auth_id = ?", authID))
}

// MarkEmailVerified flips the verified flag for the user with the given auth ID.
func (s *Store) MarkEmailVerified(authID string) error {
	res, err := s.db.Exec("UPDATE users SET email_verified = 1 WHERE auth_id = ?", authID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Clinicians ---

// CreateClinician inserts a clinician row, used by seeding and tests.
func (s *Store) CreateClinician(c Clinician) (Clinician, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ProviderType == "" {
		c.ProviderType = "counselor"
	}
	if c.DisplayName == "" {
		c.DisplayName = "Clinician"
	}
	res, err := s.db.Exec(`
		INSERT INTO clinicians (id, code, provider_type, display_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		c.ID, c.Code, c.ProviderType, c.DisplayName,
	)
	if err != nil {
		return Clinician{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Clinician{}, err
	}
	if n == 0 {
		return Clinician{}, ErrDuplicate
	}
	return c, nil
}

func (s *Store) GetClinicianByCode(code string) (Clinician, error) {
	var c Clinician
	err := s.db.QueryRow(
		"SELECT id, code, provider_type, display_name FROM clinicians WHERE code = ?", code,
	).Scan(&c.ID, &c.Code, &c.ProviderType, &c.DisplayName)
	if err == sql.ErrNoRows {
		return Clinician{}, ErrNotFound
	}
	return c, err
}

// LinkPatient associates a user with a clinician. The link is established once
// at registration and never changed.
func (s *Store) LinkPatient(userID, clinicianID string) error {
	_, err := s.db.Exec(`
		INSERT INTO patient_clinician (id, user_id, clinician_id, linked_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), userID, clinicianID, formatTime(time.Now()),
	)
	return err
}

// PatientIDs returns the user IDs linked to the given clinician.
func (s *Store) PatientIDs(clinicianID string) ([]string, error) {
	rows, err := s.db.Query("SELECT user_id FROM patient_clinician WHERE clinician_id = ?", clinicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
