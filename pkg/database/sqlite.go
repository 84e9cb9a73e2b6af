package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/SscSPs/currency_exchanger/migrations"
	_ "modernc.org/sqlite" // Register sqlite driver
)

// OpenSQLite opens the embedded SQLite store at dsn and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Every connection to ":memory:" gets its own empty database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(migrations.SQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	log.Printf("SQLite database ready at %s.\n", dsn)
	return db, nil
}

// CloseSQLite closes the SQLite database.
func CloseSQLite(db *sql.DB) {
	if db != nil {
		_ = db.Close()
		log.Println("SQLite database closed.")
	}
}
