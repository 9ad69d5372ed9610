package main

import (
	"fmt"
	"os"
	"time"

	"rikyu/internal/chat"
	"rikyu/internal/config"
	"rikyu/internal/logging"

	"github.com/spf13/cobra"
)

// newHistoryCmd prints the stored transcript without starting a chat.
func newHistoryCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the chat transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup(f)
			if err != nil {
				return err
			}
			defer logging.Sync()
			defer store.Close()

			turns, err := store.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(turns) == 0 {
				fmt.Fprintln(out, "No chat history available.")
				return nil
			}
			name := cfg.Persona.DisplayName()
			for _, t := range turns {
				fmt.Fprintln(out, chat.FormatTurn(t, name))
			}
			return nil
		},
	}
}

// newExportCmd writes the transcript to a text file.
func newExportCmd(f *flags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the chat transcript to a text file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup(f)
			if err != nil {
				return err
			}
			defer logging.Sync()
			defer store.Close()

			turns, err := store.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.DataDir
			}
			path, err := chat.Export(dir, turns, cfg.Persona.DisplayName(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chat history exported to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default data_dir)")
	return cmd
}

// newConfigCmd manages the config file.
func newConfigCmd(f *flags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the rikyu config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := f.configPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			// The API key stays in the environment, not on disk.
			cfg := config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(initCmd)
	return configCmd
}
