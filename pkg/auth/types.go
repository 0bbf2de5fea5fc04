// Package auth resolves the caller's identity from either a bearer token
// or a team API key, and attaches the resolved billing context.
package auth

import (
	"time"

	"github.com/vincentventalon/docuprocess/pkg/teams"
)

// Method is the credential type a principal authenticated with
type Method string

const (
	MethodBearer Method = "jwt"
	MethodAPIKey Method = "api_key"
)

// Principal is the authenticated caller with resolved billing context
type Principal struct {
	UserID     string        `json:"user_id"`
	Email      string        `json:"email,omitempty"`
	AuthMethod Method        `json:"auth_method"`
	IsAdmin    bool          `json:"is_admin"`
	APIKeyID   string        `json:"api_key_id,omitempty"`
	Team       teams.Context `json:"team"`
}

// APIKey is a team-owned credential. The secret is stored hashed; the
// display prefix lets the dashboard identify keys without revealing them.
type APIKey struct {
	ID        string     `json:"id"`
	TeamID    string     `json:"team_id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	KeyPrefix string     `json:"key_prefix"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Claims are the verified fields extracted from a bearer token
type Claims struct {
	Subject string
	Email   string
}
