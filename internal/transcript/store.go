package transcript

import (
	"fmt"
	"time"

	"rikyu/internal/logging"

	"go.uber.org/zap"
)

// Store owns the transcript. It has exactly one writer: the interactive session.
type Store interface {
	// Load returns the persisted turns. Missing or corrupt data yields an empty
	// transcript; corruption also resets the persisted data and is reported
	// through the recovery hook rather than as an error.
	Load() ([]Turn, error)
	// Append adds one turn and durably persists the whole transcript.
	Append(t Turn) error
	// Turns returns a copy of the in-memory transcript.
	Turns() []Turn
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Recovery describes a reset of corrupt persisted data.
type Recovery struct {
	Backend string
	Path    string
	Cause   error
	At      time.Time
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	onRecover func(Recovery)
}

// WithLogger overrides the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecoveryHook registers fn to be called after corrupt data was reset.
func WithRecoveryHook(fn func(Recovery)) Option {
	return func(o *options) { o.onRecover = fn }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Get(logging.CategoryStore)
	}
	return o
}

// report logs the recovery and forwards it to the hook.
func (o options) report(r Recovery) {
	o.logger.Warn("transcript corrupt, reset to empty",
		zap.String("backend", r.Backend),
		zap.String("path", r.Path),
		zap.Error(r.Cause))
	if o.onRecover != nil {
		o.onRecover(r)
	}
}

// Open returns the store for backend at path.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(path, opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(path, opts...)
	default:
		return nil, fmt.Errorf("transcript: unknown backend %q (valid: %s, %s)", backend, BackendJSON, BackendSQLite)
	}
}

func copyTurns(in []Turn) []Turn {
	out := make([]Turn, len(in))
	copy(out, in)
	return out
}
