package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rikyu/internal/transcript"
)

const (
	historyTimeLayout = "15:04:05"
	exportFileLayout  = "2006-01-02_15-04-05"
	exportedOnLayout  = "January 2 2006, 3:04:05 pm"
)

// FormatTurn renders one turn as "[HH:MM:SS] You: msg" or "[HH:MM:SS] <botName>: msg"
// in local time.
func FormatTurn(t transcript.Turn, botName string) string {
	speaker := botName
	if t.Role == transcript.RoleUser {
		speaker = "You"
	}
	return fmt.Sprintf("[%s] %s: %s", t.Timestamp.Local().Format(historyTimeLayout), speaker, t.Message)
}

// ExportFileName returns chat_history_YYYY-MM-DD_HH-mm-ss.txt for now.
func ExportFileName(now time.Time) string {
	return "chat_history_" + now.Format(exportFileLayout) + ".txt"
}

// FormatExport renders the transcript as the plain-text export document.
func FormatExport(turns []transcript.Turn, botName string, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Chat History with %s ===\n", botName)
	fmt.Fprintf(&sb, "Exported on: %s\n\n", now.Format(exportedOnLayout))
	for _, t := range turns {
		sb.WriteString(FormatTurn(t, botName))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Export writes the transcript into dir and returns the file path.
func Export(dir string, turns []transcript.Turn, botName string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, ExportFileName(now))
	if err := os.WriteFile(path, []byte(FormatExport(turns, botName, now)), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
