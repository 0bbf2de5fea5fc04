package credits

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLedger implements Ledger on PostgreSQL. Debits and refunds run
// on the primary through stored functions; balance and history reads go
// to a replica.
type PostgresLedger struct {
	primary *sql.DB
	replica *sql.DB
}

// NewPostgresLedger creates a new PostgresLedger. Pass the same handle
// twice when no replica is configured.
func NewPostgresLedger(primary, replica *sql.DB) *PostgresLedger {
	if replica == nil {
		replica = primary
	}
	return &PostgresLedger{primary: primary, replica: replica}
}

// Debit atomically deducts credits via the deduct_team_credits function.
// The function performs a conditional UPDATE and the transaction insert
// in one statement, so N concurrent debits against a balance of B
// succeed exactly B times.
func (l *PostgresLedger) Debit(ctx context.Context, teamID, userID string, amount int, resourceID, apiKeyID string) (*DebitResult, error) {
	query := `SELECT success, remaining_credits FROM deduct_team_credits($1, $2, $3, $4, $5)`

	result := &DebitResult{}
	err := l.primary.QueryRowContext(ctx, query, teamID, userID, amount, nullable(resourceID), nullable(apiKeyID)).
		Scan(&result.Success, &result.RemainingCredits)
	if err != nil {
		return nil, fmt.Errorf("debit failed for team %s: %w", teamID, err)
	}

	return result, nil
}

// Refund atomically returns credits via the refund_team_credits function
func (l *PostgresLedger) Refund(ctx context.Context, teamID, userID string, amount int, resourceID string) (*DebitResult, error) {
	query := `SELECT success, remaining_credits FROM refund_team_credits($1, $2, $3, $4)`

	result := &DebitResult{}
	err := l.primary.QueryRowContext(ctx, query, teamID, userID, amount, nullable(resourceID)).
		Scan(&result.Success, &result.RemainingCredits)
	if err != nil {
		return nil, fmt.Errorf("refund failed for team %s: %w", teamID, err)
	}

	return result, nil
}

// Balance returns the team's current credit balance from a replica
func (l *PostgresLedger) Balance(ctx context.Context, teamID string) (int, error) {
	query := `SELECT credits FROM teams WHERE id = $1`

	var credits int
	err := l.replica.QueryRowContext(ctx, query, teamID).Scan(&credits)
	if err == sql.ErrNoRows {
		return 0, ErrTeamNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for team %s: %w", teamID, err)
	}

	return credits, nil
}

// ListTransactions returns a page of ledger history, newest first
func (l *PostgresLedger) ListTransactions(ctx context.Context, teamID string, limit, offset int) ([]Transaction, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM transactions WHERE team_id = $1`
	if err := l.replica.QueryRowContext(ctx, countQuery, teamID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `
		SELECT transaction_ref, transaction_type, COALESCE(resource_id, ''), exec_tm, credits, created_at
		FROM transactions
		WHERE team_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := l.replica.QueryContext(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var execTM sql.NullInt64
		if err := rows.Scan(&tx.Ref, &tx.Type, &tx.ResourceID, &execTM, &tx.Credits, &tx.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if execTM.Valid {
			tx.ExecTimeMS = &execTM.Int64
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("transaction iteration failed: %w", err)
	}

	return txs, total, nil
}

// UpdateExecutionTime records the measured execution time on the usage
// transaction for a resource. Best effort, callers fire and forget.
func (l *PostgresLedger) UpdateExecutionTime(ctx context.Context, resourceID string, execTimeMS int64) error {
	query := `
		UPDATE transactions
		SET exec_tm = $2
		WHERE resource_id = $1 AND transaction_type = 'USAGE'
	`
	if _, err := l.primary.ExecContext(ctx, query, resourceID, execTimeMS); err != nil {
		return fmt.Errorf("failed to update execution time: %w", err)
	}

	return nil
}

// nullable maps an empty string to SQL NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
