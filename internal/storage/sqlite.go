package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding intents, patterns, responses,
// embeddings, settings and chat logs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "faqbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database handle for tests and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies any embedded SQL migration files that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Intents ---

func (s *Store) CreateIntent(i Intent) error {
	createdAt := i.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO intents (tag, description, created_at) VALUES (?, ?, ?)`,
		i.Tag, i.Description, createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetIntent(tag string) (Intent, error) {
	var i Intent
	var createdAt string
	err := s.db.QueryRow(`SELECT tag, description, created_at FROM intents WHERE tag = ?`, tag).
		Scan(&i.Tag, &i.Description, &createdAt)
	if err == sql.ErrNoRows {
		return Intent{}, ErrNotFound
	}
	if err != nil {
		return Intent{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Intent{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	return i, nil
}

func (s *Store) ListIntents() ([]Intent, error) {
	rows, err := s.db.Query(`SELECT tag, description, created_at FROM intents ORDER BY tag ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Intent
	for rows.Next() {
		var i Intent
		var createdAt string
		if err := rows.Scan(&i.Tag, &i.Description, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}

// DeleteIntent removes an intent and everything keyed to its tag:
// patterns, responses and cached embeddings.
func (s *Store) DeleteIntent(tag string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM intents WHERE tag = ?`, tag)
	if err != nil {
		return fmt.Errorf("deleting intent %s: %w", tag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	for _, table := range []string{"patterns", "responses", "embeddings"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE intent_tag = ?`, tag); err != nil {
			return fmt.Errorf("deleting %s for intent %s: %w", table, tag, err)
		}
	}

	return tx.Commit()
}

// --- Patterns ---

func (s *Store) CreatePattern(p Pattern) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO patterns (id, intent_tag, text, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.IntentTag, p.Text, createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetPattern(id string) (Pattern, error) {
	var p Pattern
	var createdAt string
	err := s.db.QueryRow(`SELECT id, intent_tag, text, created_at FROM patterns WHERE id = ?`, id).
		Scan(&p.ID, &p.IntentTag, &p.Text, &createdAt)
	if err == sql.ErrNoRows {
		return Pattern{}, ErrNotFound
	}
	if err != nil {
		return Pattern{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Pattern{}, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = t
	return p, nil
}

func (s *Store) ListPatterns() ([]Pattern, error) {
	return s.queryPatterns(`SELECT id, intent_tag, text, created_at FROM patterns ORDER BY id ASC`)
}

func (s *Store) ListPatternsByIntent(tag string) ([]Pattern, error) {
	return s.queryPatterns(`SELECT id, intent_tag, text, created_at FROM patterns WHERE intent_tag = ? ORDER BY id ASC`, tag)
}

// ListPatternsWithoutEmbeddings returns patterns that have no cached
// embedding record for their text and tag. Used by the backfill sync.
func (s *Store) ListPatternsWithoutEmbeddings() ([]Pattern, error) {
	return s.queryPatterns(`
		SELECT p.id, p.intent_tag, p.text, p.created_at FROM patterns p
		WHERE NOT EXISTS (
			SELECT 1 FROM embeddings e
			WHERE e.pattern_text = p.text AND e.intent_tag = p.intent_tag
		)
		ORDER BY p.id ASC`)
}

func (s *Store) queryPatterns(query string, args ...any) ([]Pattern, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Pattern
	for rows.Next() {
		var p Pattern
		var createdAt string
		if err := rows.Scan(&p.ID, &p.IntentTag, &p.Text, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// DeletePattern removes a pattern and the embedding records cached for
// its exact text under the same intent.
func (s *Store) DeletePattern(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	var intentTag, text string
	err = tx.QueryRow(`SELECT intent_tag, text FROM patterns WHERE id = ?`, id).Scan(&intentTag, &text)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM patterns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting pattern %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM embeddings WHERE pattern_text = ? AND intent_tag = ?`, text, intentTag); err != nil {
		return fmt.Errorf("deleting embeddings for pattern %s: %w", id, err)
	}

	return tx.Commit()
}

// --- Responses ---

func (s *Store) CreateResponse(r Response) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO responses (id, intent_tag, text, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.IntentTag, r.Text, createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) ListResponsesByIntent(tag string) ([]Response, error) {
	rows, err := s.db.Query(`SELECT id, intent_tag, text, created_at FROM responses WHERE intent_tag = ? ORDER BY id ASC`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Response
	for rows.Next() {
		var r Response
		var createdAt string
		if err := rows.Scan(&r.ID, &r.IntentTag, &r.Text, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) DeleteResponse(id string) error {
	res, err := s.db.Exec(`DELETE FROM responses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Settings ---

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// --- Chat logs ---

func (s *Store) SaveChatLog(l ChatLog) error {
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	matched := 0
	if l.Matched {
		matched = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_logs (id, query, response, intent_tag, matched, method, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Query, l.Response, l.IntentTag, matched, l.Method, l.Confidence,
		createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) RecentChatLogs(limit int) ([]ChatLog, error) {
	rows, err := s.db.Query(`
		SELECT id, query, response, intent_tag, matched, method, confidence, created_at
		FROM chat_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChatLog
	for rows.Next() {
		var l ChatLog
		var matched int
		var createdAt string
		if err := rows.Scan(&l.ID, &l.Query, &l.Response, &l.IntentTag, &matched, &l.Method, &l.Confidence, &createdAt); err != nil {
			return nil, err
		}
		l.Matched = matched != 0
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		l.CreatedAt = t
		results = append(results, l)
	}
	return results, rows.Err()
}
