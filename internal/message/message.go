// Package message defines the chat history types shared between the
// turn engine, the prompt renderer, and the wire protocol.
package message

import "fmt"

// Role identifies which part of the conversation a Message belongs to.
type Role int

const (
	RoleSystem Role = iota
	RoleDeveloper
	RoleUser
	RoleReasoning
	RoleAssistant
	RoleTool
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleDeveloper:
		return "developer"
	case RoleUser:
		return "user"
	case RoleReasoning:
		return "reasoning"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "unknown"
	}
}

// ParseRole parses the String() form of a Role, defaulting to
// RoleUser for anything unrecognized.
func ParseRole(s string) Role {
	switch s {
	case "system":
		return RoleSystem
	case "developer":
		return RoleDeveloper
	case "reasoning":
		return RoleReasoning
	case "assistant":
		return RoleAssistant
	case "tool":
		return RoleTool
	default:
		return RoleUser
	}
}

// Message is one turn of chat history. Content holds plain text for
// System/Developer/User/Reasoning/Assistant messages, and a JSON blob
// with recognized fields {tool, arguments?, result?} for Tool messages.
type Message struct {
	Role    Role
	Content string
}

func System(s string) Message    { return Message{Role: RoleSystem, Content: s} }
func Developer(s string) Message { return Message{Role: RoleDeveloper, Content: s} }
func User(s string) Message      { return Message{Role: RoleUser, Content: s} }
func Reasoning(s string) Message { return Message{Role: RoleReasoning, Content: s} }
func Assistant(s string) Message { return Message{Role: RoleAssistant, Content: s} }
func Tool(s string) Message      { return Message{Role: RoleTool, Content: s} }

// PreambleLen returns the length of the contiguous System/Developer
// prefix of history. The invariant that System/Developer messages
// appear only in this prefix is not enforced here; callers that build
// history are responsible for it.
func PreambleLen(history []Message) int {
	n := 0
	for _, m := range history {
		if m.Role != RoleSystem && m.Role != RoleDeveloper {
			break
		}
		n++
	}
	return n
}

func (m Message) String() string {
	return fmt.Sprintf("%s(%d bytes)", m.Role, len(m.Content))
}
