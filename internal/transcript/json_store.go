package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// JSONStore keeps the transcript as a single pretty-printed JSON array that is
// rewritten in full on every append.
type JSONStore struct {
	path   string
	turns  []Turn
	loaded bool
	opts   options
}

// NewJSONStore creates a store backed by the file at path. Nothing is read until Load.
func NewJSONStore(path string, opts ...Option) *JSONStore {
	return &JSONStore{path: path, opts: buildOptions(opts)}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.path }

// Load reads the transcript file.
func (s *JSONStore) Load() ([]Turn, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.turns = nil
			s.loaded = true
			s.opts.logger.Debug("no transcript file, starting empty", zap.String("path", s.path))
			return []Turn{}, nil
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		s.reset(err)
		return []Turn{}, nil
	}

	s.turns = turns
	s.loaded = true
	s.opts.logger.Debug("transcript loaded", zap.String("path", s.path), zap.Int("turns", len(turns)))
	return copyTurns(turns), nil
}

// reset truncates the persisted transcript to an empty array.
func (s *JSONStore) reset(cause error) {
	s.turns = nil
	s.loaded = true
	if err := s.write(nil); err != nil {
		s.opts.logger.Error("failed to reset corrupt transcript", zap.String("path", s.path), zap.Error(err))
	}
	s.opts.report(Recovery{Backend: BackendJSON, Path: s.path, Cause: cause, At: time.Now()})
}

// Append adds t and rewrites the file. The in-memory transcript is left
// unchanged when the write fails.
func (s *JSONStore) Append(t Turn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !s.loaded {
		if _, err := s.Load(); err != nil {
			return err
		}
	}

	next := append(copyTurns(s.turns), t)
	if err := s.write(next); err != nil {
		return err
	}
	s.turns = next
	s.opts.logger.Debug("turn appended", zap.String("role", string(t.Role)), zap.Int("turns", len(next)))
	return nil
}

// Turns returns a copy of the in-memory transcript.
func (s *JSONStore) Turns() []Turn { return copyTurns(s.turns) }

// Close is a no-op; every append is already on disk.
func (s *JSONStore) Close() error { return nil }

// write replaces the file atomically via a temp file in the same directory.
func (s *JSONStore) write(turns []Turn) error {
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp transcript: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace transcript: %w", err)
	}
	return nil
}
