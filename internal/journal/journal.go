// Package journal records applied, undone and redone draw commands to
// Postgres for ops audit. The journal is strictly best-effort: a write
// failure is logged and dropped, never surfaced to the editor.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"pondops/editor-core/internal/editor"
)

// Execer is the minimal DB interface the journal needs. *db.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Journal struct {
	log zerolog.Logger
	db  Execer
}

func New(log zerolog.Logger, db Execer) *Journal {
	return &Journal{log: log, db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS editor_commands (
	id          BIGSERIAL PRIMARY KEY,
	session_id  UUID        NOT NULL,
	seq         INTEGER     NOT NULL,
	action      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	pond_id     BIGINT      NOT NULL,
	payload     JSONB       NOT NULL,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS editor_commands_session_idx ON editor_commands (session_id, seq);
`

// EnsureSchema creates the journal table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, schema)
	return err
}

// Command implements editor.CommandObserver.
func (j *Journal) Command(sessionID uuid.UUID, action string, seq int, cmd editor.DrawCommand) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		j.log.Error().Err(err).Str("action", action).Msg("journal payload marshal failed")
		return
	}

	// Sessions must never block on the journal for long.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = j.db.Exec(ctx,
		`INSERT INTO editor_commands (session_id, seq, action, kind, pond_id, payload) VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, seq, action, string(cmd.Kind), cmd.PondID(), payload,
	)
	if err != nil {
		j.log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("action", action).
			Int("seq", seq).
			Msg("journal insert failed")
	}
}
