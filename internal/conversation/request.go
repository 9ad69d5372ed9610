package conversation

import (
	"rikyu/internal/transcript"
)

// Role is the speaker tag understood by the remote model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one prior turn as sent to the model.
type Message struct {
	Role Role
	Text string
}

// Request is built fresh for every call and never cached.
type Request struct {
	// History is the repaired window of prior turns; it is empty or starts with RoleUser.
	History []Message
	// Final is the persona plus instruction, sent as the last message.
	Final  string
	Params GenerationParams
}

// Window returns at most the last size turns, order preserved.
func Window(turns []transcript.Turn, size int) []transcript.Turn {
	if size <= 0 || len(turns) == 0 {
		return []transcript.Turn{}
	}
	start := 0
	if len(turns) > size {
		start = len(turns) - size
	}
	out := make([]transcript.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

// RepairHistory drops every turn before the first user turn. A window with no
// user turn yields an empty history. Interior alternation is left as is.
func RepairHistory(window []transcript.Turn) []transcript.Turn {
	first := -1
	for i, t := range window {
		if t.Role == transcript.RoleUser {
			first = i
			break
		}
	}
	if first < 0 {
		return []transcript.Turn{}
	}

	repaired := window[first:]
	// Re-check; truncation already guarantees it.
	if len(repaired) == 0 || repaired[0].Role != transcript.RoleUser {
		return []transcript.Turn{}
	}
	return repaired
}

// FinalMessage joins the persona and the trailing instruction.
func FinalMessage(persona, instruction string) string {
	return persona + "\n" + instruction
}

// BuildRequest derives the request for one call from a transcript snapshot.
func BuildRequest(turns []transcript.Turn, persona string, settings Settings) Request {
	settings = settings.withDefaults()
	history := RepairHistory(Window(turns, settings.WindowSize))

	msgs := make([]Message, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, Message{Role: toModelRole(t.Role), Text: t.Message})
	}

	return Request{
		History: msgs,
		Final:   FinalMessage(persona, settings.Instruction),
		Params:  settings.Params,
	}
}

func toModelRole(r transcript.Role) Role {
	if r == transcript.RoleUser {
		return RoleUser
	}
	return RoleModel
}
