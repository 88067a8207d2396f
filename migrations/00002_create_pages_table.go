package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreatePagesTable, downCreatePagesTable)
}

func upCreatePagesTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE pages (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  icon TEXT,
	  title VARCHAR(255) NOT NULL,
	  description TEXT,
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
	  deleted_at TIMESTAMP WITH TIME ZONE
	);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreatePagesTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS pages;`
	_, err := tx.ExecContext(ctx, query)
	if err != nil {
		return err
	}
	return nil
}
