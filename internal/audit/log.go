// Package audit keeps an append-only DuckDB log of intake activity. The
// history endpoint reads from it; nothing in the pipeline depends on a write
// succeeding.
package audit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/caremesh/intake/internal/models"
)

// Log is the DuckDB-backed intake event log.
type Log struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open creates or opens the audit database in dir.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	dbPath := filepath.Join(dir, "intake_audit.duckdb")

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS intake_events (
			id         VARCHAR PRIMARY KEY,
			kind       VARCHAR,
			event      VARCHAR NOT NULL,
			detail     VARCHAR,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit table: %w", err)
	}

	return &Log{db: db, dbPath: dbPath}, nil
}

// Record appends one event. Failures are logged and swallowed: the audit
// trail never blocks or fails an intake operation.
func (l *Log) Record(kind string, event models.EventType, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO intake_events (id, kind, event, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), kind, string(event), detail, time.Now(),
	)
	if err != nil {
		fmt.Printf("[Audit] Warning: failed to record %s event: %v\n", event, err)
	}
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]models.IntakeEvent, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, event, detail, created_at
		 FROM intake_events
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []models.IntakeEvent
	for rows.Next() {
		var evt models.IntakeEvent
		var event string
		if err := rows.Scan(&evt.ID, &evt.Kind, &event, &evt.Detail, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		evt.Event = models.EventType(event)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Prune deletes events older than maxAge.
func (l *Log) Prune(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	_, err := l.db.Exec(`DELETE FROM intake_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("pruning audit events: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
