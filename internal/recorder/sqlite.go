package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so external readers don't block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			customer_no   TEXT NOT NULL,
			balance       REAL,
			is_low        INTEGER NOT NULL,
			updated_label TEXT,
			fetch_ok      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_cust ON readings(customer_no)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			kind           TEXT NOT NULL,
			customer_count INTEGER,
			low_count      INTEGER,
			delivered      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_ts ON notifications(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordReading(row *ReadingRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO readings
		(timestamp, customer_no, balance, is_low, updated_label, fetch_ok)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), row.CustomerNo, row.Balance,
		row.IsLow, row.UpdatedLabel, row.FetchOK,
	)
	return err
}

func (r *SQLiteRecorder) RecordNotification(row *NotificationRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO notifications
		(timestamp, kind, customer_count, low_count, delivered)
		VALUES (?,?,?,?,?)`,
		time.Now().Unix(), row.Kind, row.CustomerCount, row.LowCount, row.Delivered,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
