package teams

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	fakeStore
	teamCalls       atomic.Int64
	membershipCalls atomic.Int64
	profileCalls    atomic.Int64
}

func (c *countingStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	c.teamCalls.Add(1)
	return c.fakeStore.GetTeam(ctx, teamID)
}

func (c *countingStore) GetMembership(ctx context.Context, userID, teamID string) (*Membership, error) {
	c.membershipCalls.Add(1)
	return c.fakeStore.GetMembership(ctx, userID, teamID)
}

func (c *countingStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	c.profileCalls.Add(1)
	return c.fakeStore.GetProfile(ctx, userID)
}

func TestCachedStore_TeamHit(t *testing.T) {
	store := &countingStore{
		fakeStore: fakeStore{
			teams: map[string]*Team{"team-1": {ID: "team-1", HasPaid: true}},
		},
	}
	cached := NewCachedStore(store, 16, time.Minute)

	for i := 0; i < 3; i++ {
		team, err := cached.GetTeam(context.Background(), "team-1")
		if err != nil {
			t.Fatalf("GetTeam() error: %v", err)
		}
		if team.ID != "team-1" {
			t.Errorf("Unexpected team: %+v", team)
		}
	}

	if calls := store.teamCalls.Load(); calls != 1 {
		t.Errorf("Expected 1 store call, got %d", calls)
	}
}

func TestCachedStore_MissNotCached(t *testing.T) {
	store := &countingStore{}
	cached := NewCachedStore(store, 16, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cached.GetTeam(context.Background(), "ghost"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	}

	// Misses hit the store each time so a just-created team is visible
	if calls := store.teamCalls.Load(); calls != 2 {
		t.Errorf("Expected 2 store calls for misses, got %d", calls)
	}
}

func TestCachedStore_MembershipKeying(t *testing.T) {
	store := &countingStore{
		fakeStore: fakeStore{
			memberships: map[string]*Membership{
				"user-1:team-1": {UserID: "user-1", TeamID: "team-1", Role: RoleOwner},
				"user-2:team-1": {UserID: "user-2", TeamID: "team-1", Role: RoleMember},
			},
		},
	}
	cached := NewCachedStore(store, 16, time.Minute)

	m1, err := cached.GetMembership(context.Background(), "user-1", "team-1")
	if err != nil {
		t.Fatalf("GetMembership() error: %v", err)
	}
	m2, err := cached.GetMembership(context.Background(), "user-2", "team-1")
	if err != nil {
		t.Fatalf("GetMembership() error: %v", err)
	}

	if m1.Role == m2.Role {
		t.Error("Expected distinct cache entries per user")
	}
	if calls := store.membershipCalls.Load(); calls != 2 {
		t.Errorf("Expected 2 store calls, got %d", calls)
	}
}

func TestCachedStore_TTLExpiry(t *testing.T) {
	store := &countingStore{
		fakeStore: fakeStore{
			profiles: map[string]*Profile{"user-1": {ID: "user-1", Email: "a@b.c"}},
		},
	}
	cached := NewCachedStore(store, 16, 50*time.Millisecond)

	if _, err := cached.GetProfile(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := cached.GetProfile(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}

	if calls := store.profileCalls.Load(); calls != 2 {
		t.Errorf("Expected cache entry to expire, got %d store calls", calls)
	}
}

func TestCachedStore_Purge(t *testing.T) {
	store := &countingStore{
		fakeStore: fakeStore{
			teams: map[string]*Team{"team-1": {ID: "team-1"}},
		},
	}
	cached := NewCachedStore(store, 16, time.Minute)

	cached.GetTeam(context.Background(), "team-1")
	cached.Purge()
	cached.GetTeam(context.Background(), "team-1")

	if calls := store.teamCalls.Load(); calls != 2 {
		t.Errorf("Expected purge to drop entries, got %d store calls", calls)
	}
}
