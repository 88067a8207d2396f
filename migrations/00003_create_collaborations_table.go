package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateCollaborationsTable, downCreateCollaborationsTable)
}

func upCreateCollaborationsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS collaborations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			page_id UUID NOT NULL REFERENCES pages(id),
			email TEXT NOT NULL,
			is_owner BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
			UNIQUE (page_id, email)
		);
		CREATE INDEX idx_collaborations_email ON collaborations (email);
	`)
	return err
}

func downCreateCollaborationsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS collaborations;`)
	return err
}
