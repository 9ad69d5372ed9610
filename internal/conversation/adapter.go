package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"rikyu/internal/logging"
	"rikyu/internal/transcript"

	"go.uber.org/zap"
)

var (
	ErrMissingCredential = errors.New("GEMINI_API_KEY is not set")
	ErrEmptyPersona      = errors.New("persona is empty")
	ErrNoService         = errors.New("no chat service configured")
	ErrEmptyReply        = errors.New("model returned an empty reply")
)

// ChatService is the remote chat-completion call: it opens a session seeded
// with req.History, sends req.Final and returns the completion text.
type ChatService interface {
	Send(ctx context.Context, req Request) (string, error)
}

// Config wires an Adapter.
type Config struct {
	// Credential is the static API key. Empty short-circuits every call.
	Credential string
	Settings   Settings
	Logger     *zap.Logger
}

// Adapter derives requests from the transcript and invokes the chat service
// exactly once per reply.
type Adapter struct {
	service    ChatService
	credential string
	settings   Settings
	log        *zap.Logger
}

// NewAdapter creates an adapter over service.
func NewAdapter(service ChatService, cfg Config) *Adapter {
	log := cfg.Logger
	if log == nil {
		log = logging.Get(logging.CategoryChat)
	}
	return &Adapter{
		service:    service,
		credential: cfg.Credential,
		settings:   cfg.Settings.withDefaults(),
		log:        log,
	}
}

// Settings returns the effective settings.
func (a *Adapter) Settings() Settings { return a.settings }

// BuildReply returns the model's reply to the transcript. Any failure is
// returned as *Error; the transcript is never modified here.
func (a *Adapter) BuildReply(ctx context.Context, turns []transcript.Turn, persona string) (string, error) {
	if a.credential == "" {
		a.log.Warn("reply rejected before remote call", zap.Error(ErrMissingCredential))
		return "", Wrap(ConfigError, ErrMissingCredential)
	}
	if strings.TrimSpace(persona) == "" {
		return "", Wrap(ConfigError, ErrEmptyPersona)
	}
	if a.service == nil {
		return "", Wrap(ConfigError, ErrNoService)
	}

	req := BuildRequest(turns, persona, a.settings)
	a.log.Debug("request built",
		zap.Int("transcript_turns", len(turns)),
		zap.Int("history_turns", len(req.History)),
		zap.Int("final_len", len(req.Final)))

	start := time.Now()
	text, err := a.service.Send(ctx, req)
	if err != nil {
		kind := Classify(err)
		a.log.Error("reply failed",
			zap.Stringer("kind", kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if tagged, ok := err.(*Error); ok {
			return "", tagged
		}
		return "", &Error{Kind: kind, Err: err}
	}
	if text == "" {
		a.log.Error("reply failed", zap.Stringer("kind", GenericError), zap.Error(ErrEmptyReply))
		return "", Wrap(GenericError, ErrEmptyReply)
	}

	a.log.Debug("reply received", zap.Int("reply_len", len(text)), zap.Duration("elapsed", time.Since(start)))
	return text, nil
}
