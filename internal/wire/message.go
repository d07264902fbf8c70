package wire

import (
	"encoding/json"
	"fmt"
)

// Message is one Jupyter protocol message, either side of the wire.
type Message struct {
	// Identities are the routing frames preceding the delimiter. Replies
	// read from a SUB socket carry the topic here.
	Identities [][]byte

	// Header identifies this message.
	Header Header

	// Parent is the header of the request this message answers. Zero for
	// client-initiated messages.
	Parent Header

	// Metadata is transport metadata, usually empty.
	Metadata map[string]any

	// Content is the type-specific payload, still encoded.
	Content json.RawMessage

	// Buffers are raw binary extensions after the JSON segments.
	Buffers [][]byte
}

// NewMessage builds a client-originated message with a fresh header.
func NewMessage(session, msgType string, content any) (*Message, error) {
	raw, err := marshalContent(content)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", msgType, err)
	}
	return &Message{
		Header:  NewHeader(session, msgType),
		Content: raw,
	}, nil
}

// Type returns the message type from the header.
func (m *Message) Type() string { return m.Header.MsgType }

// ParentID returns the msg_id this message answers, or the empty string.
func (m *Message) ParentID() string { return m.Parent.MsgID }

// DecodeContent unmarshals the content payload into v.
func (m *Message) DecodeContent(v any) error {
	if len(m.Content) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Content, v); err != nil {
		return fmt.Errorf("decode %s content: %w", m.Type(), err)
	}
	return nil
}

func marshalContent(content any) (json.RawMessage, error) {
	if content == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(content)
}
