// Package chat runs the interactive line-oriented conversation with the agent.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rikyu/internal/config"
	"rikyu/internal/conversation"
	"rikyu/internal/logging"
	"rikyu/internal/transcript"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Apology is shown in place of a reply when the model call fails.
	Apology  = "I couldn't get a proper response. Please try again."
	Farewell = "Farewell. May your path be peaceful."
)

// Replier produces the agent's next message for a transcript.
type Replier interface {
	BuildReply(ctx context.Context, turns []transcript.Turn, persona string) (string, error)
}

// Options wires a Session.
type Options struct {
	Store    transcript.Store
	Replier  Replier
	Renderer *Renderer
	Input    io.Reader
	// Speaker is optional; without one /voice still toggles but nothing is spoken.
	Speaker Speaker
	Persona config.PersonaConfig
	Voice   bool
	// ExportDir receives /export files.
	ExportDir        string
	ContemplateDelay time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
}

// Session owns all per-run state: the store, the reply adapter, the renderer
// and the voice toggle.
type Session struct {
	id               string
	store            transcript.Store
	replier          Replier
	render           *Renderer
	input            *bufio.Reader
	speaker          Speaker
	persona          config.PersonaConfig
	name             string
	voice            bool
	exportDir        string
	contemplateDelay time.Duration
	now              func() time.Time
	log              *zap.Logger
}

// NewSession validates opts and creates a session.
func NewSession(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	if opts.Replier == nil {
		return nil, errors.New("chat: replier is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("chat: renderer is required")
	}
	if opts.Input == nil {
		return nil, errors.New("chat: input is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logging.Get(logging.CategorySession)
	}

	return &Session{
		id:               id,
		store:            opts.Store,
		replier:          opts.Replier,
		render:           opts.Renderer,
		input:            bufio.NewReader(opts.Input),
		speaker:          opts.Speaker,
		persona:          opts.Persona,
		name:             opts.Persona.DisplayName(),
		voice:            opts.Voice,
		exportDir:        opts.ExportDir,
		contemplateDelay: opts.ContemplateDelay,
		now:              opts.Now,
		log:              log.With(zap.String("session_id", id)),
	}, nil
}

// ID returns the session identifier stamped on every log line.
func (s *Session) ID() string { return s.id }

// VoiceEnabled reports the current voice toggle.
func (s *Session) VoiceEnabled() bool { return s.voice }

// Run loads the transcript, greets the user and processes input lines until
// /exit, end of input or ctx cancellation. Cancellation is noticed while
// waiting at the prompt; a reply already requested runs to completion first.
func (s *Session) Run(ctx context.Context) error {
	if _, err := s.store.Load(); err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	s.log.Info("session started", zap.Int("turns", len(s.store.Turns())))

	s.greet()

	done := make(chan struct{})
	defer close(done)
	lines := readLines(s.input, done)

	st := s.render.Styles()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.render.Write(st.User, "You: ")

		var in inputLine
		select {
		case <-ctx.Done():
			s.render.Line(st.System, "\n"+Farewell)
			s.log.Info("session interrupted")
			return ctx.Err()
		case in = <-lines:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if in.err != nil {
			if !errors.Is(in.err, io.EOF) {
				return fmt.Errorf("failed to read input: %w", in.err)
			}
			s.render.Line(st.System, "\n"+Farewell)
			s.log.Info("input closed, session ended")
			return nil
		}
		if end := s.Handle(ctx, in.text); end {
			s.log.Info("session ended by user")
			return nil
		}
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines delivers input lines without their terminator until a read fails
// or done is closed. The last value carries the read error, io.EOF included.
// Lines have no length limit.
func readLines(r *bufio.Reader, done <-chan struct{}) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		for {
			text, err := r.ReadString('\n')
			if text != "" {
				select {
				case lines <- inputLine{text: strings.TrimRight(text, "\r\n")}:
				case <-done:
					return
				}
			}
			if err != nil {
				select {
				case lines <- inputLine{err: err}:
				case <-done:
				}
				return
			}
		}
	}()
	return lines
}

// greet prints the banner and the welcome message. The welcome is persisted
// only when the transcript already has turns so that history never starts with
// an agent turn.
func (s *Session) greet() {
	st := s.render.Styles()
	s.render.Line(st.Banner, fmt.Sprintf("\n=== Welcome to %s, the Zen Master Chatbot ===", s.name))
	s.render.Line(st.System, "Type /help to see available commands")
	s.render.Line(st.System, "Type your message and press Enter to chat\n")

	welcome := strings.TrimSpace(s.persona.Welcome)
	if welcome == "" {
		return
	}
	s.render.Line(st.Bot, s.name+": "+welcome)

	if len(s.store.Turns()) == 0 {
		return
	}
	turn := s.turn(transcript.RoleBot, welcome)
	turn.IsWelcome = true
	if err := s.store.Append(turn); err != nil {
		s.log.Warn("failed to persist welcome", zap.Error(err))
	}
}

// Handle processes one input line and reports whether the session should end.
// Chat text is stored exactly as typed.
func (s *Session) Handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if cmd, ok := ParseCommand(trimmed); ok {
		return s.runCommand(cmd)
	}
	s.converse(ctx, line)
	return false
}

func (s *Session) runCommand(cmd Command) bool {
	st := s.render.Styles()
	s.log.Debug("command", zap.String("command", string(cmd)))

	switch cmd {
	case CommandExit:
		s.render.Line(st.System, "\n"+Farewell)
		return true

	case CommandHistory:
		s.showHistory()

	case CommandExport:
		path, err := Export(s.exportDir, s.store.Turns(), s.name, s.now())
		if err != nil {
			s.log.Error("export failed", zap.Error(err))
			s.render.Line(st.Error, "\nError exporting chat history: "+err.Error()+"\n")
			return false
		}
		s.log.Info("transcript exported", zap.String("path", path))
		s.render.Line(st.System, "\nChat history exported to: "+path+"\n")

	case CommandVoice:
		s.voice = !s.voice
		state := "disabled"
		if s.voice {
			state = "enabled"
		}
		s.render.Line(st.System, "\nVoice output "+state+".\n")

	case CommandHelp:
		s.render.Line(st.System, "\nAvailable commands:")
		lines := HelpLines()
		for i, l := range lines {
			if i == len(lines)-1 {
				l += "\n"
			}
			s.render.Line(st.System, l)
		}
	}
	return false
}

func (s *Session) showHistory() {
	st := s.render.Styles()
	s.render.Line(st.System, "\n=== Chat History ===")

	turns := s.store.Turns()
	if len(turns) == 0 {
		s.render.Line(st.System, "No chat history available.")
		return
	}
	for _, t := range turns {
		style := st.Bot
		if t.Role == transcript.RoleUser {
			style = st.User
		}
		s.render.Line(style, FormatTurn(t, s.name))
	}
	s.render.Line(st.System, "=== End of History ===\n")
}

// converse appends the user turn, asks for a reply and appends it only on
// success. Failures print the apology and never end the session.
func (s *Session) converse(ctx context.Context, text string) {
	st := s.render.Styles()

	if err := s.store.Append(s.turn(transcript.RoleUser, text)); err != nil {
		s.log.Error("failed to persist user turn", zap.Error(err))
		s.render.Line(st.Error, "\nError saving your message: "+err.Error())
		return
	}

	s.render.Contemplate(ctx, s.name, s.contemplateDelay)

	start := time.Now()
	reply, err := s.replier.BuildReply(context.WithoutCancel(ctx), s.store.Turns(), s.persona.Prompt)
	if err != nil {
		s.log.Error("reply failed",
			zap.Stringer("kind", conversation.KindOf(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		s.render.Line(st.Error, "\nError getting response: "+err.Error())
		s.render.Line(st.Bot, s.name+": "+Apology)
		return
	}

	if err := s.store.Append(s.turn(transcript.RoleBot, reply)); err != nil {
		s.log.Error("failed to persist reply", zap.Error(err))
	}
	s.log.Debug("turn complete", zap.Duration("elapsed", time.Since(start)), zap.Int("reply_len", len(reply)))

	s.render.Type(ctx, st.Bot, s.name+": ", reply)

	if s.voice && s.speaker != nil {
		if err := s.speaker.Speak(reply); err != nil {
			s.log.Warn("speech failed", zap.Error(err))
		}
	}
}

func (s *Session) turn(role transcript.Role, message string) transcript.Turn {
	return transcript.Turn{
		Role:      role,
		Message:   message,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
}
