package chat

import (
	"time"

	"github.com/suPer8Hu/kb-chat/internal/annotate"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once appended to a Conversation.
type Message struct {
	// Index is the position in the conversation, set on append.
	Index   int    `json:"index"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Sources is set on tagged assistant answers, possibly empty. It is nil
	// for user messages, untagged answers and errors.
	Sources   annotate.SourceSet `json:"-"`
	Error     bool               `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// HasSources reports whether the message carried a source set.
func (m Message) HasSources() bool { return m.Sources != nil }

// Segments splits the content for rendering.
func (m Message) Segments() []annotate.Segment {
	if m.Role != RoleAssistant || m.Error {
		return []annotate.Segment{{Kind: annotate.SegmentText, Text: m.Content}}
	}
	return annotate.Split(m.Content, m.HasSources())
}

// MessageView is the wire shape of a message.
type MessageView struct {
	Index     int                `json:"index"`
	Role      Role               `json:"role"`
	Content   string             `json:"content"`
	Sources   []string           `json:"sources"`
	Segments  []annotate.Segment `json:"segments"`
	Error     bool               `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func (m Message) View() MessageView {
	var sources []string
	if m.Sources != nil {
		sources = m.Sources.Sorted()
	}
	return MessageView{
		Index:     m.Index,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   sources,
		Segments:  m.Segments(),
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
	}
}
