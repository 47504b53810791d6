package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// SessionToken is an issued session token with its claims.
type SessionToken struct {
	Token     string
	Username  string
	Nonce     string
	ExpiresAt time.Time
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// IssueToken creates and stores a fresh token for the user.
func (s *Store) IssueToken(username string, ttl time.Duration) (*SessionToken, error) {
	tok := &SessionToken{
		Token:     randomHex(32),
		Username:  username,
		Nonce:     randomHex(16),
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO tokens (token, username, nonce, expires_at) VALUES (?, ?, ?, ?)`,
		tok.Token, tok.Username, tok.Nonce, tok.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return tok, nil
}

// LookupToken returns the token record if it exists, is not blacklisted
// and has not expired.
func (s *Store) LookupToken(token string) (*SessionToken, error) {
	var (
		tok         SessionToken
		expiresAt   string
		blacklisted int
	)
	err := s.db.QueryRow(
		`SELECT token, username, nonce, expires_at, blacklisted FROM tokens WHERE token = ?`,
		token,
	).Scan(&tok.Token, &tok.Username, &tok.Nonce, &expiresAt, &blacklisted)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}
	if blacklisted != 0 {
		return nil, ErrTokenBlacklisted
	}
	tok.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if time.Now().After(tok.ExpiresAt) {
		return nil, ErrTokenNotFound
	}
	return &tok, nil
}

// BlacklistToken marks a token as revoked. Unknown tokens are a no-op.
func (s *Store) BlacklistToken(token string) error {
	if _, err := s.db.Exec(`UPDATE tokens SET blacklisted = 1 WHERE token = ?`, token); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}
