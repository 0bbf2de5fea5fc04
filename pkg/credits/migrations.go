package credits

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL for the billing tables and the atomic ledger
// functions. deduct_team_credits uses a conditional UPDATE so the
// balance check and the deduction are one atomic statement.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id           UUID PRIMARY KEY,
	email        TEXT NOT NULL,
	is_admin     BOOLEAN NOT NULL DEFAULT FALSE,
	last_team_id UUID,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS teams (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name       TEXT NOT NULL,
	owner_id   UUID NOT NULL REFERENCES profiles(id),
	has_paid   BOOLEAN NOT NULL DEFAULT FALSE,
	credits    INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS team_members (
	user_id    UUID NOT NULL REFERENCES profiles(id),
	team_id    UUID NOT NULL REFERENCES teams(id),
	role       TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'member')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, team_id)
);

CREATE TABLE IF NOT EXISTS team_api_keys (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	team_id    UUID NOT NULL REFERENCES teams(id),
	name       TEXT NOT NULL DEFAULT '',
	key_hash   TEXT NOT NULL UNIQUE,
	key_prefix TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	revoked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_team_api_keys_hash
	ON team_api_keys (key_hash) WHERE revoked_at IS NULL;

CREATE TABLE IF NOT EXISTS transactions (
	id               BIGSERIAL PRIMARY KEY,
	transaction_ref  UUID NOT NULL DEFAULT gen_random_uuid(),
	team_id          UUID NOT NULL REFERENCES teams(id),
	user_id          UUID NOT NULL,
	api_key_id       UUID,
	transaction_type TEXT NOT NULL CHECK (transaction_type IN ('USAGE', 'REFUND', 'PURCHASE', 'BONUS')),
	resource_id      TEXT,
	exec_tm          BIGINT,
	credits          INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_team_created
	ON transactions (team_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_transactions_resource
	ON transactions (resource_id) WHERE resource_id IS NOT NULL;

CREATE OR REPLACE FUNCTION deduct_team_credits(
	p_team_id UUID,
	p_user_id UUID,
	p_amount INTEGER,
	p_resource_id TEXT,
	p_api_key_id UUID
) RETURNS TABLE (success BOOLEAN, remaining_credits INTEGER) AS $$
DECLARE
	v_remaining INTEGER;
BEGIN
	UPDATE teams
	SET credits = credits - p_amount
	WHERE id = p_team_id AND credits >= p_amount
	RETURNING credits INTO v_remaining;

	IF NOT FOUND THEN
		SELECT credits INTO v_remaining FROM teams WHERE id = p_team_id;
		RETURN QUERY SELECT FALSE, COALESCE(v_remaining, 0);
		RETURN;
	END IF;

	INSERT INTO transactions (team_id, user_id, api_key_id, transaction_type, resource_id, credits)
	VALUES (p_team_id, p_user_id, p_api_key_id, 'USAGE', p_resource_id, p_amount);

	RETURN QUERY SELECT TRUE, v_remaining;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION refund_team_credits(
	p_team_id UUID,
	p_user_id UUID,
	p_amount INTEGER,
	p_resource_id TEXT
) RETURNS TABLE (success BOOLEAN, remaining_credits INTEGER) AS $$
DECLARE
	v_remaining INTEGER;
BEGIN
	UPDATE teams
	SET credits = credits + p_amount
	WHERE id = p_team_id
	RETURNING credits INTO v_remaining;

	IF NOT FOUND THEN
		RETURN QUERY SELECT FALSE, 0;
		RETURN;
	END IF;

	INSERT INTO transactions (team_id, user_id, transaction_type, resource_id, credits)
	VALUES (p_team_id, p_user_id, 'REFUND', p_resource_id, -p_amount);

	RETURN QUERY SELECT TRUE, v_remaining;
END;
$$ LANGUAGE plpgsql;
`

// Migrate applies the billing schema
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply billing schema: %w", err)
	}
	return nil
}
