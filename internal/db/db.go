package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            sender TEXT NOT NULL CHECK (sender <> ''),
            sender_name TEXT NOT NULL CHECK (sender_name <> ''),
            receiver TEXT NULL,
            text TEXT NOT NULL CHECK (text <> ''),
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_group_idx ON messages (created_at DESC, id DESC) WHERE receiver IS NULL;`,
		`CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender, receiver, created_at);`,
		`CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver, sender, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
