package credits

import "context"

// Ledger is the team credit ledger. Debit and Refund are atomic: the
// balance check, the balance change and the transaction insert happen
// in one database round trip so concurrent requests cannot overdraw.
type Ledger interface {
	// Debit atomically deducts amount credits from the team. A false
	// Success with a nil error means the balance was insufficient.
	Debit(ctx context.Context, teamID, userID string, amount int, resourceID, apiKeyID string) (*DebitResult, error)

	// Refund atomically returns amount credits to the team. Refunds are
	// not idempotent: calling twice for the same resource credits twice.
	Refund(ctx context.Context, teamID, userID string, amount int, resourceID string) (*DebitResult, error)

	// Balance returns the team's current credit balance
	Balance(ctx context.Context, teamID string) (int, error)

	// ListTransactions returns a page of the team's ledger history,
	// newest first, plus the total entry count
	ListTransactions(ctx context.Context, teamID string, limit, offset int) ([]Transaction, int, error)

	// UpdateExecutionTime records the measured execution time on a usage
	// transaction after the fact
	UpdateExecutionTime(ctx context.Context, resourceID string, execTimeMS int64) error
}
