package teams

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides read access to teams, memberships and profiles
type Store interface {
	GetTeam(ctx context.Context, teamID string) (*Team, error)
	GetMembership(ctx context.Context, userID, teamID string) (*Membership, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetTeam retrieves a team by ID
func (s *PostgresStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	query := `
		SELECT id, name, owner_id, has_paid, created_at
		FROM teams
		WHERE id = $1
	`
	team := &Team{}
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(
		&team.ID, &team.Name, &team.OwnerID, &team.HasPaid, &team.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// GetMembership retrieves a user's membership in a team, joined with the
// team's paid flag
func (s *PostgresStore) GetMembership(ctx context.Context, userID, teamID string) (*Membership, error) {
	query := `
		SELECT tm.user_id, tm.team_id, tm.role, t.has_paid
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.user_id = $1 AND tm.team_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, userID, teamID).Scan(
		&m.UserID, &m.TeamID, &m.Role, &m.HasPaid,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// GetProfile retrieves a user profile by ID
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	// last_team_id is a nullable UUID; it must be cast to text before
	// COALESCE or Postgres tries to coerce '' to uuid and errors.
	query := `
		SELECT id, email, is_admin, COALESCE(last_team_id::text, '')
		FROM profiles
		WHERE id = $1
	`
	p := &Profile{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &p.Email, &p.IsAdmin, &p.LastTeamID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}
