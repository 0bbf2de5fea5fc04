package api

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/auth"
	"github.com/vincentventalon/docuprocess/pkg/convert"
	"github.com/vincentventalon/docuprocess/pkg/credits"
	"github.com/vincentventalon/docuprocess/pkg/middleware"
	"github.com/vincentventalon/docuprocess/pkg/observability"
	"github.com/vincentventalon/docuprocess/pkg/ratelimit"
	"github.com/vincentventalon/docuprocess/pkg/teams"
)

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (v *fakeVerifier) Verify(_ context.Context, _ string) (*auth.Claims, error) {
	return v.claims, v.err
}

type fakeKeyStore struct{}

func (s *fakeKeyStore) LookupActive(_ context.Context, _ string) (*auth.KeyRecord, error) {
	return nil, auth.ErrKeyNotFound
}
func (s *fakeKeyStore) Create(_ context.Context, _ *auth.APIKey) error { return nil }
func (s *fakeKeyStore) Revoke(_ context.Context, _ string) error       { return nil }

type fakeTeamStore struct {
	memberships map[string]*teams.Membership
	profiles    map[string]*teams.Profile
}

func (s *fakeTeamStore) GetTeam(_ context.Context, _ string) (*teams.Team, error) {
	return nil, teams.ErrNotFound
}

func (s *fakeTeamStore) GetMembership(_ context.Context, userID, teamID string) (*teams.Membership, error) {
	if m, ok := s.memberships[userID+":"+teamID]; ok {
		return m, nil
	}
	return nil, teams.ErrNotFound
}

func (s *fakeTeamStore) GetProfile(_ context.Context, userID string) (*teams.Profile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return nil, teams.ErrNotFound
}

// fakeLedger is an in-memory ledger with the same atomicity contract as the
// Postgres functions: a debit never drives the balance negative.
type fakeLedger struct {
	mu           sync.Mutex
	balance      int
	transactions []credits.Transaction
	refunds        int
	execTimes      map[string]int64
	refundErr      error
	refundRejected bool
}

func newFakeLedger(balance int) *fakeLedger {
	return &fakeLedger{balance: balance, execTimes: make(map[string]int64)}
}

func (l *fakeLedger) Debit(_ context.Context, teamID, _ string, amount int, resourceID, _ string) (*credits.DebitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return &credits.DebitResult{Success: false, RemainingCredits: l.balance}, nil
	}
	l.balance -= amount
	l.transactions = append(l.transactions, credits.Transaction{
		Ref:        resourceID,
		Type:       credits.TypeUsage,
		ResourceID: resourceID,
		Credits:    amount,
		CreatedAt:  time.Now(),
	})
	return &credits.DebitResult{Success: true, RemainingCredits: l.balance}, nil
}

func (l *fakeLedger) Refund(_ context.Context, teamID, _ string, amount int, resourceID string) (*credits.DebitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refundErr != nil {
		return nil, l.refundErr
	}
	if l.refundRejected {
		return &credits.DebitResult{Success: false, RemainingCredits: l.balance}, nil
	}
	l.balance += amount
	l.refunds++
	l.transactions = append(l.transactions, credits.Transaction{
		Ref:        resourceID,
		Type:       credits.TypeRefund,
		ResourceID: resourceID,
		Credits:    -amount,
		CreatedAt:  time.Now(),
	})
	return &credits.DebitResult{Success: true, RemainingCredits: l.balance}, nil
}

func (l *fakeLedger) Balance(_ context.Context, _ string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

func (l *fakeLedger) ListTransactions(_ context.Context, _ string, limit, offset int) ([]credits.Transaction, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sorted := make([]credits.Transaction, len(l.transactions))
	copy(sorted, l.transactions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	total := len(sorted)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}

func (l *fakeLedger) UpdateExecutionTime(_ context.Context, resourceID string, execTimeMS int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.execTimes[resourceID] = execTimeMS
	return nil
}

type stubFetcher struct {
	pdf []byte
	err error
}

func (f *stubFetcher) FetchPDF(_ context.Context, _ string) ([]byte, error) {
	return f.pdf, f.err
}

type stubConverter struct {
	result *convert.Result
	err    error
}

func (c *stubConverter) Convert(_ context.Context, _ []byte) (*convert.Result, error) {
	return c.result, c.err
}

type serverDeps struct {
	ledger    credits.Ledger
	fetcher   PDFFetcher
	converter convert.Converter
	limiter   ratelimit.Limiter
	limits    middleware.RateLimitOptions
	paid      bool
}

func newTestServer(t *testing.T, deps serverDeps) *Server {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, nil)
	store := &fakeTeamStore{
		memberships: map[string]*teams.Membership{
			"user-1:team-1": {UserID: "user-1", TeamID: "team-1", Role: teams.RoleMember, HasPaid: deps.paid},
		},
		profiles: map[string]*teams.Profile{
			"user-1": {ID: "user-1", Email: "user@example.com", LastTeamID: "team-1"},
		},
	}
	verifier := &fakeVerifier{claims: &auth.Claims{Subject: "user-1", Email: "user@example.com"}}
	resolver := auth.NewResolver(verifier, &fakeKeyStore{}, store, teams.NewResolver(store, logger), nil, logger)

	if deps.limiter == nil {
		deps.limiter = ratelimit.NewMemoryLimiter(time.Minute)
	}
	if deps.fetcher == nil {
		deps.fetcher = &stubFetcher{err: nil}
	}
	if deps.converter == nil {
		deps.converter = &stubConverter{result: &convert.Result{Markdown: "# ok", PageCount: 1}}
	}

	return NewServer(resolver, deps.limiter, deps.ledger, deps.fetcher, deps.converter,
		logger, nil, Options{RateLimits: deps.limits})
}
