// Package ledger remembers which vessel/category alerts were already sent so
// repeated passes over the same feeds do not notify twice.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLedger is the single-host backend used by the CLI.
type SQLiteLedger struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the ledger file. ttl <= 0 keeps
// entries forever.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS sent_alerts (
            alert_key TEXT PRIMARY KEY,
            sent_at   INTEGER NOT NULL
        )
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	return &SQLiteLedger{db: db, ttl: ttl, now: time.Now}, nil
}

func (l *SQLiteLedger) Seen(ctx context.Context, keys []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return seen, nil
	}

	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	query := `SELECT alert_key FROM sent_alerts WHERE alert_key IN (?` + strings.Repeat(",?", len(keys)-1) + `)`
	if l.ttl > 0 {
		query += ` AND sent_at >= ?`
		args = append(args, l.now().Add(-l.ttl).Unix())
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		seen[k] = true
	}
	return seen, rows.Err()
}

func (l *SQLiteLedger) Mark(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO sent_alerts (alert_key, sent_at) VALUES (?, ?)
        ON CONFLICT(alert_key) DO UPDATE SET sent_at = excluded.sent_at
    `)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	sentAt := l.now().Unix()
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k, sentAt); err != nil {
			return fmt.Errorf("mark %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
