// Command rikyu is a persona chat in the terminal backed by Google Gemini.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rikyu/internal/chat"
	"rikyu/internal/config"
	"rikyu/internal/conversation"
	"rikyu/internal/gemini"
	"rikyu/internal/logging"
	"rikyu/internal/transcript"
	"rikyu/internal/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flags holds the persistent flags shared by every subcommand.
type flags struct {
	configPath string
	verbose    bool
	apiKey     string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "rikyu",
		Short: "Rikyu - a reflective companion in your terminal",
		Long: `Rikyu is a calm, introspective chat companion powered by Google Gemini.

Run without arguments to start the interactive chat. The conversation is kept
in a local transcript so Rikyu remembers where you left off.

Commands inside the chat:
  /help     list commands
  /history  show the transcript
  /export   write the transcript to a text file
  /voice    toggle spoken replies
  /exit     leave`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, f)
		},
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "", "config file (default $RIKYU_HOME/config.yaml)")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "write debug logs to <data_dir>/logs")
	root.PersistentFlags().StringVar(&f.apiKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY)")

	root.AddCommand(newHistoryCmd(f), newExportCmd(f), newConfigCmd(f))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.apiKey != "" {
		cfg.LLM.APIKey = f.apiKey
	}
	if f.verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// setup loads config, starts logging and opens the transcript store.
func setup(f *flags) (*config.Config, transcript.Store, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Initialize(cfg.LoggingSettings()); err != nil {
		return nil, nil, err
	}

	boot := logging.Get(logging.CategoryBoot)
	store, err := transcript.Open(cfg.Store.Backend, cfg.StorePath(),
		transcript.WithRecoveryHook(func(r transcript.Recovery) {
			boot.Warn("transcript was reset", zap.String("path", r.Path), zap.Error(r.Cause))
		}))
	if err != nil {
		return nil, nil, err
	}
	boot.Info("transcript store opened",
		zap.String("backend", cfg.Store.Backend),
		zap.String("path", cfg.StorePath()))
	return cfg, store, nil
}

func runChat(cmd *cobra.Command, f *flags) error {
	cfg, store, err := setup(f)
	if err != nil {
		return err
	}
	defer logging.Sync()
	defer store.Close()

	client := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.GetLLMTimeout(),
	})
	adapter := conversation.NewAdapter(client, conversation.Config{
		Credential: cfg.LLM.APIKey,
		Settings:   cfg.ConversationSettings(),
	})

	out := cmd.OutOrStdout()
	renderer := newRenderer(out, cfg)
	if !cfg.LLM.HasCredential() {
		renderer.Line(renderer.Styles().Error, "GEMINI_API_KEY is not set; replies will fail until it is configured.")
	}

	speaker := chat.NewExecSpeaker(cfg.UI.VoiceCommand, logging.Get(logging.CategorySession))
	defer speaker.Wait()

	session, err := chat.NewSession(chat.Options{
		Store:            store,
		Replier:          adapter,
		Renderer:         renderer,
		Input:            cmd.InOrStdin(),
		Speaker:          speaker,
		Persona:          cfg.Persona,
		Voice:            cfg.UI.Voice,
		ExportDir:        cfg.DataDir,
		ContemplateDelay: contemplateDelay(out, cfg),
	})
	if err != nil {
		return err
	}
	logging.Get(logging.CategoryBoot).Info("chat starting",
		zap.String("session_id", session.ID()),
		zap.String("model", client.Model()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newRenderer types replies out only when writing to a terminal.
func newRenderer(out io.Writer, cfg *config.Config) *chat.Renderer {
	file, _ := out.(*os.File)
	opts := []chat.RendererOption{chat.WithStyles(ui.DefaultStyles(file, cfg.UI.Color))}
	if file != nil && ui.IsTerminal(file) {
		opts = append(opts, chat.WithTypingDelay(cfg.UI.TypingDelays()))
	}
	return chat.NewRenderer(out, opts...)
}

func contemplateDelay(out io.Writer, cfg *config.Config) time.Duration {
	if file, ok := out.(*os.File); ok && ui.IsTerminal(file) {
		return cfg.UI.GetContemplateDelay()
	}
	return 0
}
