package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0005, Down0005)
}

func Up0005(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE submission (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    challenge_id UUID NOT NULL REFERENCES challenge(id),
    team_id UUID NOT NULL REFERENCES team(id),
    user_id UUID NOT NULL REFERENCES app_user(id),
    submission_text TEXT NOT NULL DEFAULT '',
    submission_file TEXT,
    accuracy NUMERIC(5, 2) CHECK (accuracy >= 0 AND accuracy <= 100),
    is_solved BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT submission_team_challenge_user_key UNIQUE (team_id, challenge_id, user_id)
);`},
		statement{query: `CREATE INDEX submission_challenge_id_idx ON submission(challenge_id);`},
	)
}

func Down0005(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE submission;`)
	return err
}
