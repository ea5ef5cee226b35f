package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"Rippers/model"
)

const activitySchema = `CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    date TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    filename TEXT NOT NULL DEFAULT '',
    filesize INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_activity_log_timestamp ON activity_log(timestamp);`

// SQLiteActivityRepository keeps the activity log in a local SQLite file.
type SQLiteActivityRepository struct {
	db   *sql.DB
	path string
}

// OpenSQLiteActivityRepository 打开（必要时创建）SQLite 活动日志
func OpenSQLiteActivityRepository(path string) (*SQLiteActivityRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create activity db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(activitySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate activity db: %w", err)
	}
	return &SQLiteActivityRepository{db: db, path: path}, nil
}

func (r *SQLiteActivityRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Add inserts the entry and prunes everything beyond MaxActivityEntries.
func (r *SQLiteActivityRepository) Add(ctx context.Context, entry *model.ActivityEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO activity_log (timestamp, date, url, filename, filesize, status) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Date, entry.URL, entry.Filename, entry.Filesize, entry.Status)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = uint(id)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM activity_log WHERE id NOT IN (
            SELECT id FROM activity_log ORDER BY timestamp DESC, id DESC LIMIT ?
        )`, MaxActivityEntries)
	if err != nil {
		return fmt.Errorf("prune activity: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteActivityRepository) Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 || limit > MaxActivityEntries {
		limit = MaxActivityEntries
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, date, url, filename, filesize, status
         FROM activity_log ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var e model.ActivityEntry
		var id int64
		if err := rows.Scan(&id, &e.Timestamp, &e.Date, &e.URL, &e.Filename, &e.Filesize, &e.Status); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.ID = uint(id)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ ActivityRepository = (*SQLiteActivityRepository)(nil)
