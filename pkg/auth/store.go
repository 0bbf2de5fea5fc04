package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned when no active key matches the lookup
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore provides access to team API keys
type KeyStore interface {
	// LookupActive finds a non-revoked key by hash, joined with the
	// owning team's owner and paid flag
	LookupActive(ctx context.Context, keyHash string) (*KeyRecord, error)
	Create(ctx context.Context, key *APIKey) error
	Revoke(ctx context.Context, keyID string) error
}

// KeyRecord is the result of an API key lookup, carrying the team fields
// needed to build a principal without further queries
type KeyRecord struct {
	KeyID   string
	TeamID  string
	OwnerID string
	HasPaid bool
}

// PostgresKeyStore implements KeyStore using PostgreSQL
type PostgresKeyStore struct {
	db *sql.DB
}

// NewPostgresKeyStore creates a new PostgresKeyStore
func NewPostgresKeyStore(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

// LookupActive finds a non-revoked key by hash
func (s *PostgresKeyStore) LookupActive(ctx context.Context, keyHash string) (*KeyRecord, error) {
	query := `
		SELECT k.id, k.team_id, t.owner_id, t.has_paid
		FROM team_api_keys k
		JOIN teams t ON t.id = k.team_id
		WHERE k.key_hash = $1 AND k.revoked_at IS NULL
	`
	rec := &KeyRecord{}
	err := s.db.QueryRowContext(ctx, query, keyHash).Scan(
		&rec.KeyID, &rec.TeamID, &rec.OwnerID, &rec.HasPaid,
	)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	return rec, nil
}

// Create inserts a new API key
func (s *PostgresKeyStore) Create(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO team_api_keys (team_id, name, key_hash, key_prefix)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, key.TeamID, key.Name, key.KeyHash, key.KeyPrefix).
		Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

// Revoke marks a key as revoked. Revocation is permanent.
func (s *PostgresKeyStore) Revoke(ctx context.Context, keyID string) error {
	query := `
		UPDATE team_api_keys
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, keyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoke result: %w", err)
	}
	if rows == 0 {
		return ErrKeyNotFound
	}

	return nil
}
