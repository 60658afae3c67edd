package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// headingStore keeps user chosen table headings per preview directory.
type headingStore struct {
	db   *sql.DB
	path string
}

func openHeadingStore(dir string) (*headingStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	sqlitePath := filepath.Join(dir, "headings.sqlite")
	db, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := migrateHeadingStore(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &headingStore{db: db, path: sqlitePath}, nil
}

func migrateHeadingStore(db *sql.DB) error {
	statements := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS headings (
			source TEXT NOT NULL,
			table_name TEXT NOT NULL,
			heading TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source, table_name)
		);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("heading store migration failed: %w", err)
		}
	}
	return nil
}

func (s *headingStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *headingStore) Get(source, table string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, nil
	}
	query, args, err := sq.Select("heading").
		From("headings").
		Where(sq.Eq{"source": cleanSource(source), "table_name": table}).
		ToSql()
	if err != nil {
		return "", false, err
	}
	var heading string
	err = s.db.QueryRow(query, args...).Scan(&heading)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return heading, true, nil
}

func (s *headingStore) List(source string) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query, args, err := sq.Select("table_name", "heading").
		From("headings").
		Where(sq.Eq{"source": cleanSource(source)}).
		OrderBy("table_name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	headings := make(map[string]string)
	for rows.Next() {
		var (
			table   string
			heading string
		)
		if err := rows.Scan(&table, &heading); err != nil {
			return nil, err
		}
		headings[table] = heading
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return headings, nil
}

// Set stores heading for table. A blank heading removes the override so the
// table falls back to its own name.
func (s *headingStore) Set(source, table, heading string) error {
	if s == nil || s.db == nil {
		return nil
	}
	source = cleanSource(source)
	if strings.TrimSpace(heading) == "" {
		query, args, err := sq.Delete("headings").
			Where(sq.Eq{"source": source, "table_name": table}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.Exec(query, args...)
		return err
	}
	query, args, err := sq.Insert("headings").
		Columns("source", "table_name", "heading").
		Values(source, table, heading).
		Suffix("ON CONFLICT(source, table_name) DO UPDATE SET heading = excluded.heading, updated_at = CURRENT_TIMESTAMP").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query, args...)
	return err
}

func cleanSource(source string) string {
	clean := filepath.Clean(strings.TrimSpace(source))
	if abs, err := filepath.Abs(clean); err == nil {
		return abs
	}
	return clean
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
