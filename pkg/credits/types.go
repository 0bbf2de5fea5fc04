// Package credits manages the prepaid team credit ledger. Each
// conversion debits one credit atomically before work starts and
// refunds it if the work fails.
package credits

import (
	"errors"
	"time"
)

// ErrTeamNotFound is returned when the team row does not exist
var ErrTeamNotFound = errors.New("team not found")

// TransactionType classifies ledger entries
type TransactionType string

const (
	// TypeUsage consumes credits (positive credits field)
	TypeUsage TransactionType = "USAGE"
	// TypeRefund returns credits after a failed operation (negative)
	TypeRefund TransactionType = "REFUND"
	// TypePurchase adds purchased credits (negative)
	TypePurchase TransactionType = "PURCHASE"
	// TypeBonus adds promotional credits (negative)
	TypeBonus TransactionType = "BONUS"
)

// Transaction is one ledger entry. Credits are positive for consumption
// and negative for additions.
type Transaction struct {
	Ref        string          `json:"transaction_ref"`
	Type       TransactionType `json:"transaction_type"`
	ResourceID string          `json:"resource_id,omitempty"`
	ExecTimeMS *int64          `json:"exec_tm"`
	Credits    int             `json:"credits"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DebitResult is the outcome of an atomic debit or refund
type DebitResult struct {
	Success          bool
	RemainingCredits int
}
