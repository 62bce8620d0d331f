package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/tradelink/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS reconciliation_runs (
	id TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	input_hash TEXT NOT NULL,
	auto_match_threshold REAL NOT NULL,
	summary_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_input_hash ON reconciliation_runs(input_hash);

CREATE TABLE IF NOT EXISTS trade_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	coin TEXT NOT NULL,
	entry_price REAL,
	exit_price REAL,
	roi REAL,
	status TEXT NOT NULL,
	signal_ref TEXT,
	result_ref TEXT,
	match_confidence REAL NOT NULL,
	timestamp TEXT,
	FOREIGN KEY(run_id) REFERENCES reconciliation_runs(id) ON DELETE CASCADE,
	UNIQUE(run_id, position)
);

CREATE TABLE IF NOT EXISTS unusable_observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	kind TEXT NOT NULL,
	source_id TEXT NOT NULL,
	overall_confidence REAL NOT NULL,
	reason TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES reconciliation_runs(id) ON DELETE CASCADE
);
`

// Open opens the sqlite database at databasePath and ensures the schema exists.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// sqlite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := migrateTradeRecords(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Info("Database tables ensured/created.")
	return db, nil
}

// InitDB opens the global DB and exits the process on failure.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		logger.L.Error("database initialization failed", "error", err)
		stdlog.Fatalf("database initialization failed: %v", err)
	}
	DB = db
}

// migrateTradeRecords adds columns introduced after the first schema version.
func migrateTradeRecords(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(trade_records)")
	if err != nil {
		return fmt.Errorf("error querying table schema for trade_records: %w", err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return fmt.Errorf("error scanning column info for trade_records: %w", err)
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over column info for trade_records: %w", err)
	}

	if !columnExists["timestamp"] {
		if _, err := db.Exec("ALTER TABLE trade_records ADD COLUMN timestamp TEXT"); err != nil {
			return fmt.Errorf("error adding 'timestamp' column to trade_records: %w", err)
		}
		logger.L.Info("Added 'timestamp' column to 'trade_records' table")
	}
	return nil
}
