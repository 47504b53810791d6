package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenBlacklisted = errors.New("token blacklisted")
)

// User is a registered researcher account.
type User struct {
	Username  string    `json:"username"`
	Project   string    `json:"project"`
	Federated bool      `json:"federated"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUser stores a user with a bcrypt-hashed password.
func (s *Store) CreateUser(username, password, project string, federated bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO users (username, password_hash, project, federated) VALUES (?, ?, ?, ?)`,
		username, hash, project, boolInt(federated),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// VerifyCredentials checks a username/password pair and returns the user
// record on success.
func (s *Store) VerifyCredentials(username, password string) (*User, error) {
	var (
		u         User
		hash      []byte
		federated int
	)
	err := s.db.QueryRow(
		`SELECT username, password_hash, project, federated, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &hash, &u.Project, &federated, &u.CreatedAt)
	if err == sql.ErrNoRows {
		// Hash anyway so missing users cost the same as wrong passwords.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	u.Federated = federated != 0
	return &u, nil
}

// GetUser returns a user record, or nil when absent.
func (s *Store) GetUser(username string) (*User, error) {
	var (
		u         User
		federated int
	)
	err := s.db.QueryRow(
		`SELECT username, project, federated, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &u.Project, &federated, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Federated = federated != 0
	return &u, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
