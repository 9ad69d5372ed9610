package transcript

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const transcriptSchema = `
CREATE TABLE IF NOT EXISTS transcript (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	is_welcome INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps the transcript in a single SQLite table ordered by insertion.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	turns  []Turn
	loaded bool
	opts   options
}

// NewSQLiteStore opens (lazily) the database at path.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{path: path, opts: buildOptions(opts)}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db
	return nil
}

// Load reads every row in insertion order.
func (s *SQLiteStore) Load() ([]Turn, error) {
	turns, err := s.readAll()
	if err != nil {
		if resetErr := s.reset(err); resetErr != nil {
			return nil, resetErr
		}
		return []Turn{}, nil
	}

	s.turns = turns
	s.loaded = true
	s.opts.logger.Debug("transcript loaded", zap.String("path", s.path), zap.Int("turns", len(turns)))
	return copyTurns(turns), nil
}

func (s *SQLiteStore) readAll() ([]Turn, error) {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(transcriptSchema); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT role, message, timestamp, is_welcome FROM transcript ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var role, message, ts string
		var welcome int
		if err := rows.Scan(&role, &message, &ts, &welcome); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		turns = append(turns, Turn{Role: Role(role), Message: message, Timestamp: at, IsWelcome: welcome != 0})
	}
	return turns, rows.Err()
}

// reset replaces an unreadable database file with a fresh empty one.
func (s *SQLiteStore) reset(cause error) error {
	_ = s.db.Close()
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			s.opts.logger.Error("failed to remove corrupt database", zap.String("path", s.path+suffix), zap.Error(err))
		}
	}
	if err := s.open(); err != nil {
		return err
	}
	if _, err := s.db.Exec(transcriptSchema); err != nil {
		return fmt.Errorf("failed to recreate transcript schema: %w", err)
	}

	s.turns = nil
	s.loaded = true
	s.opts.report(Recovery{Backend: BackendSQLite, Path: s.path, Cause: cause, At: time.Now()})
	return nil
}

// Append inserts t in its own transaction.
func (s *SQLiteStore) Append(t Turn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !s.loaded {
		if _, err := s.Load(); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	welcome := 0
	if t.IsWelcome {
		welcome = 1
	}
	if _, err := tx.Exec(
		`INSERT INTO transcript (role, message, timestamp, is_welcome) VALUES (?, ?, ?, ?)`,
		string(t.Role), t.Message, t.Timestamp.UTC().Format(time.RFC3339Nano), welcome,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	s.turns = append(s.turns, t)
	s.opts.logger.Debug("turn appended", zap.String("role", string(t.Role)), zap.Int("turns", len(s.turns)))
	return nil
}

// Turns returns a copy of the in-memory transcript.
func (s *SQLiteStore) Turns() []Turn { return copyTurns(s.turns) }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
