package offer

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id           BIGSERIAL PRIMARY KEY,
	exchange_id  TEXT NOT NULL,
	bot_type     TEXT NOT NULL,
	thread_id    TEXT NOT NULL DEFAULT '',
	run_id       TEXT NOT NULL DEFAULT '',
	run_status   TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	polls        INTEGER NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS exchanges_exchange_id_idx ON exchanges (exchange_id)`

// execer is the part of *sql.DB the ledger uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type repo struct {
	db execer
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

// EnsureSchema creates the exchanges table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create exchanges table")
	}
	return nil
}

func (r *repo) SaveExchange(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchanges (exchange_id, bot_type, thread_id, run_id, run_status, outcome, polls, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ExchangeID,
		rec.BotType,
		rec.ThreadID,
		rec.RunID,
		rec.RunStatus,
		rec.Outcome,
		rec.Polls,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	return errors.Wrap(err, "insert exchange")
}
