// Package teams resolves the billing team for an authenticated subject.
// Every conversion is charged to a team, so resolution runs on the hot
// path and best-effort lookups degrade to "no team" instead of failing.
package teams

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a team, membership or profile does not exist
var ErrNotFound = errors.New("not found")

// Role is a member's role within a team
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Team is a billing tenant. Credits and rate limits attach to teams,
// not individual users.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	HasPaid   bool      `json:"has_paid"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a team with a role
type Membership struct {
	UserID  string `json:"user_id"`
	TeamID  string `json:"team_id"`
	Role    Role   `json:"role"`
	HasPaid bool   `json:"has_paid"`
}

// Profile holds per-user account data outside of any team
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	IsAdmin    bool   `json:"is_admin"`
	LastTeamID string `json:"last_team_id,omitempty"`
}

// Context is the resolved billing context attached to a request
type Context struct {
	TeamID          string `json:"team_id,omitempty"`
	Role            Role   `json:"team_role,omitempty"`
	IsPaid          bool   `json:"is_paid"`
	IsImpersonating bool   `json:"is_impersonating"`
}

// HasTeam reports whether a billing team was resolved
func (c Context) HasTeam() bool {
	return c.TeamID != ""
}
