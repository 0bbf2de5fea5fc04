package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/vincentventalon/docuprocess/pkg/observability"
	"github.com/vincentventalon/docuprocess/pkg/teams"
)

// ErrInvalidCredential is returned when neither credential verifies
var ErrInvalidCredential = errors.New("invalid credential")

// Resolver turns raw credentials into a Principal with billing context
type Resolver struct {
	verifier    TokenVerifier
	keys        KeyStore
	keygen      *KeyGenerator
	teams       *teams.Resolver
	profiles    teams.Store
	adminEmails map[string]bool
	logger      *observability.Logger
}

// NewResolver creates a new identity resolver. adminEmails is an
// operator-configured allowlist that grants admin alongside the
// profile's is_admin flag.
func NewResolver(verifier TokenVerifier, keys KeyStore, profiles teams.Store, teamResolver *teams.Resolver, adminEmails []string, logger *observability.Logger) *Resolver {
	emails := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		emails[strings.ToLower(e)] = true
	}

	return &Resolver{
		verifier:    verifier,
		keys:        keys,
		keygen:      NewKeyGenerator(),
		teams:       teamResolver,
		profiles:    profiles,
		adminEmails: emails,
		logger:      logger,
	}
}

// ResolveBearer authenticates a bearer token. The team comes from the
// x-team-id header when present, otherwise the profile's default team.
func (r *Resolver) ResolveBearer(ctx context.Context, rawToken, requestedTeamID string) (*Principal, error) {
	claims, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		r.logger.WithError(err).Warn("bearer token verification failed")
		return nil, ErrInvalidCredential
	}

	email := claims.Email
	isAdmin := r.adminEmails[strings.ToLower(email)]

	// Admin flag lookup is best effort
	profile, err := r.profiles.GetProfile(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, teams.ErrNotFound) {
			r.logger.WithError(err).Warn("profile lookup failed during bearer auth")
		}
	} else {
		isAdmin = isAdmin || profile.IsAdmin
		if email == "" {
			email = profile.Email
		}
	}

	teamCtx := r.teams.Resolve(ctx, claims.Subject, requestedTeamID, isAdmin)

	return &Principal{
		UserID:     claims.Subject,
		Email:      email,
		AuthMethod: MethodBearer,
		IsAdmin:    isAdmin,
		Team:       teamCtx,
	}, nil
}

// ResolveAPIKey authenticates a team API key. The key fixes the team
// context: its team, owner role, and the team's paid flag. The x-team-id
// header is ignored on this path.
func (r *Resolver) ResolveAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	if err := r.keygen.ValidateKeyFormat(rawKey); err != nil {
		return nil, ErrInvalidCredential
	}

	rec, err := r.keys.LookupActive(ctx, r.keygen.HashKey(rawKey))
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			r.logger.WithError(err).Error("api key lookup failed")
		}
		return nil, ErrInvalidCredential
	}

	if rec.OwnerID == "" {
		r.logger.WithField("api_key_id", rec.KeyID).Warn("api key has no associated team owner")
		return nil, ErrInvalidCredential
	}

	// Owner email and admin flag enrichment is best effort
	var email string
	isAdmin := false
	profile, err := r.profiles.GetProfile(ctx, rec.OwnerID)
	if err != nil {
		if !errors.Is(err, teams.ErrNotFound) {
			r.logger.WithError(err).Warn("owner profile lookup failed during api key auth")
		}
	} else {
		email = profile.Email
		isAdmin = profile.IsAdmin || r.adminEmails[strings.ToLower(profile.Email)]
	}

	return &Principal{
		UserID:     rec.OwnerID,
		Email:      email,
		AuthMethod: MethodAPIKey,
		IsAdmin:    isAdmin,
		APIKeyID:   rec.KeyID,
		Team: teams.Context{
			TeamID: rec.TeamID,
			Role:   teams.RoleOwner,
			IsPaid: rec.HasPaid,
		},
	}, nil
}
