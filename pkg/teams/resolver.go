package teams

import (
	"context"
	"errors"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// Resolver resolves the billing context for a user. Resolution never
// fails hard: any lookup error degrades to an empty context and is
// logged, leaving the entitlement decision to the caller.
type Resolver struct {
	store  Store
	logger *observability.Logger
}

// NewResolver creates a new Resolver
func NewResolver(store Store, logger *observability.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve determines the billing team for a user. Priority:
//
//  1. Platform admins with an explicit requested team get owner-level
//     access to that team without membership (impersonation).
//  2. An empty requested team falls back to the profile's last_team_id.
//  3. Membership in the chosen team yields the member's actual role.
//  4. Anything else resolves to no team.
func (r *Resolver) Resolve(ctx context.Context, userID, requestedTeamID string, isAdmin bool) Context {
	log := observability.FromContext(ctx)

	// Admin impersonation bypasses the membership check entirely
	if isAdmin && requestedTeamID != "" {
		team, err := r.store.GetTeam(ctx, requestedTeamID)
		if err == nil {
			return Context{
				TeamID:          team.ID,
				Role:            RoleOwner,
				IsPaid:          team.HasPaid,
				IsImpersonating: true,
			}
		}
		// Fall through to the normal membership check
		log.WithError(err).WithField("team_id", requestedTeamID).Warn("admin team lookup failed")
	}

	teamID := requestedTeamID
	if teamID == "" {
		profile, err := r.store.GetProfile(ctx, userID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.WithError(err).Warn("failed to get user's default team")
			}
		} else {
			teamID = profile.LastTeamID
		}
	}

	if teamID == "" {
		return Context{}
	}

	m, err := r.store.GetMembership(ctx, userID, teamID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).WithField("team_id", teamID).Warn("failed to get team membership")
		}
		return Context{}
	}

	return Context{
		TeamID: m.TeamID,
		Role:   m.Role,
		IsPaid: m.HasPaid,
	}
}
