// Package chat defines the message shape shared by players, backends and the
// turn engine.
package chat

import "strings"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a player's history.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"image,omitempty"`
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	if m.Images != nil {
		m.Images = append([]string(nil), m.Images...)
	}
	return m
}

// Clone deep-copies msgs. A nil input yields a non-nil empty slice.
func Clone(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// EnsureAlternatingRoles returns a new slice in which consecutive messages of
// the same role are merged, their contents joined by a blank line. When
// cullEmptySystem is set, a leading system message with empty content is
// dropped. The input is never modified. merged counts the messages that were
// folded into their predecessor.
func EnsureAlternatingRoles(msgs []Message, cullEmptySystem bool) (out []Message, merged int) {
	out = make([]Message, 0, len(msgs))
	for i, m := range msgs {
		if i == 0 && cullEmptySystem && m.Role == RoleSystem && strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			prev := &out[n-1]
			prev.Content = prev.Content + "\n\n" + m.Content
			if len(m.Images) > 0 {
				prev.Images = append(prev.Images, m.Images...)
			}
			merged++
			continue
		}
		out = append(out, m.Clone())
	}
	return out, merged
}

// Last returns the final message of msgs and whether there was one.
func Last(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}
