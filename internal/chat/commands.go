package chat

import "strings"

// Command is a slash command recognized by literal, case-insensitive match.
type Command string

const (
	CommandExit    Command = "/exit"
	CommandHistory Command = "/history"
	CommandExport  Command = "/export"
	CommandVoice   Command = "/voice"
	CommandHelp    Command = "/help"
)

var commands = []struct {
	cmd  Command
	help string
}{
	{CommandExit, "Exit the chat"},
	{CommandHistory, "Display chat history"},
	{CommandExport, "Export chat history to a text file"},
	{CommandVoice, "Toggle voice output"},
	{CommandHelp, "Display this help message"},
}

// ParseCommand reports whether line is exactly one of the known commands.
// Anything else, including unknown slash words, is chat text.
func ParseCommand(line string) (Command, bool) {
	lower := strings.ToLower(line)
	for _, c := range commands {
		if lower == string(c.cmd) {
			return c.cmd, true
		}
	}
	return "", false
}

// HelpLines returns one "<command> - <description>" line per command.
func HelpLines() []string {
	lines := make([]string, 0, len(commands))
	for _, c := range commands {
		lines = append(lines, string(c.cmd)+" - "+c.help)
	}
	return lines
}
