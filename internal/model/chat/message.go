package chat

import (
	"strings"
	"time"
)

// Roles a conversation turn can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation as sent by the client. Clients come in
// two flavors: plain `content` bodies and part-based bodies, so both are
// accepted and Text() normalizes them.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Part is a typed fragment of a part-based message. Only text parts are used.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text returns the message body regardless of which client shape was used.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}

	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Request is the body of POST /api/chat.
type Request struct {
	Messages []Message `json:"messages"`
	UserID   string    `json:"userId"`
}

// Annotation is an advisory emotion label attached to a user turn. It never
// gates control flow except for the empathy-directive threshold in the prompt.
type Annotation struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Neutral is the annotation used whenever classification is unavailable.
func Neutral() Annotation {
	return Annotation{Label: "neutral", Score: 0}
}

// Record is a conversation turn as stored in (and read back from) the vector
// index, with its metadata flattened.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Emotion   string    `json:"emotion,omitempty"`
	Score     float64   `json:"emotionScore,omitempty"`
}

// Stats aggregates a user's stored history.
type Stats struct {
	MessageCount   int `json:"messageCount"`
	UserTurns      int `json:"userTurns"`
	AssistantTurns int `json:"assistantTurns"`
}
