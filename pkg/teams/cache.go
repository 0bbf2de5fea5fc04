package teams

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore decorates a Store with short-lived LRU caches. Team and
// profile rows change rarely compared to how often the hot path reads
// them, so a small TTL takes most of the read load off the database.
// Memberships are cached too since the membership check runs on every
// authenticated request.
type CachedStore struct {
	store Store

	teams       *lru.LRU[string, *Team]
	profiles    *lru.LRU[string, *Profile]
	memberships *lru.LRU[string, *Membership]
}

// NewCachedStore wraps a Store with expirable LRU caches
func NewCachedStore(store Store, size int, ttl time.Duration) *CachedStore {
	if size < 16 {
		size = 16
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &CachedStore{
		store:       store,
		teams:       lru.NewLRU[string, *Team](size, nil, ttl),
		profiles:    lru.NewLRU[string, *Profile](size, nil, ttl),
		memberships: lru.NewLRU[string, *Membership](size, nil, ttl),
	}
}

// GetTeam retrieves a team, preferring the cache
func (c *CachedStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	if team, ok := c.teams.Get(teamID); ok {
		return team, nil
	}

	team, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	c.teams.Add(teamID, team)
	return team, nil
}

// GetMembership retrieves a membership, preferring the cache
func (c *CachedStore) GetMembership(ctx context.Context, userID, teamID string) (*Membership, error) {
	key := userID + ":" + teamID
	if m, ok := c.memberships.Get(key); ok {
		return m, nil
	}

	m, err := c.store.GetMembership(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	c.memberships.Add(key, m)
	return m, nil
}

// GetProfile retrieves a profile, preferring the cache
func (c *CachedStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := c.profiles.Get(userID); ok {
		return p, nil
	}

	p, err := c.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.profiles.Add(userID, p)
	return p, nil
}

// Purge drops all cached entries
func (c *CachedStore) Purge() {
	c.teams.Purge()
	c.profiles.Purge()
	c.memberships.Purge()
}
