package chat

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Speaker reads agent replies aloud. Speak must not block the prompt.
type Speaker interface {
	Speak(text string) error
}

// DefaultVoiceCommand returns the platform text-to-speech binary.
func DefaultVoiceCommand() string {
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

// ExecSpeaker speaks by running an external TTS command with the text as its
// only argument.
type ExecSpeaker struct {
	command string
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewExecSpeaker creates a speaker for command; empty selects DefaultVoiceCommand.
func NewExecSpeaker(command string, log *zap.Logger) *ExecSpeaker {
	if command == "" {
		command = DefaultVoiceCommand()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecSpeaker{command: command, log: log}
}

// Speak starts the TTS process and returns without waiting for it.
func (s *ExecSpeaker) Speak(text string) error {
	path, err := exec.LookPath(s.command)
	if err != nil {
		return fmt.Errorf("voice command %q not available: %w", s.command, err)
	}
	cmd := exec.Command(path, text)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start voice command: %w", err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := cmd.Wait(); err != nil {
			s.log.Debug("voice command exited with error", zap.String("command", s.command), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started utterance has finished.
func (s *ExecSpeaker) Wait() {
	s.wg.Wait()
}
