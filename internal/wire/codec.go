package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// delimiter separates routing identities from the signed message body.
var delimiter = []byte("<IDS|MSG>")

// MaxFrameSize bounds any single JSON segment we are willing to decode.
// Kernel outputs (inline images in particular) can be large, but a frame
// beyond this is a protocol error, not data.
const MaxFrameSize = 64 << 20

var emptyDict = []byte("{}")

// Encode serializes a message into its frame sequence, signing the four
// JSON segments.
func Encode(m *Message, s *Signer) ([][]byte, error) {
	header, err := json.Marshal(m.Header)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	parent := emptyDict
	if !m.Parent.IsZero() {
		if parent, err = json.Marshal(m.Parent); err != nil {
			return nil, fmt.Errorf("encode parent header: %w", err)
		}
	}

	metadata := emptyDict
	if m.Metadata != nil {
		if metadata, err = json.Marshal(m.Metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	content := []byte(m.Content)
	if len(content) == 0 {
		content = emptyDict
	}

	frames := make([][]byte, 0, len(m.Identities)+6+len(m.Buffers))
	frames = append(frames, m.Identities...)
	frames = append(frames, delimiter)
	frames = append(frames, s.Sign(header, parent, metadata, content))
	frames = append(frames, header, parent, metadata, content)
	frames = append(frames, m.Buffers...)
	return frames, nil
}

// Decode parses a received frame sequence, rejecting messages whose
// signature does not verify.
func Decode(frames [][]byte, s *Signer) (*Message, error) {
	di := -1
	for i, f := range frames {
		if bytes.Equal(f, delimiter) {
			di = i
			break
		}
	}
	if di < 0 {
		return nil, ErrNoDelimiter
	}

	body := frames[di+1:]
	if len(body) < 5 {
		return nil, fmt.Errorf("%w: %d frames after delimiter", ErrTruncated, len(body))
	}

	signature := body[0]
	segments := body[1:5]
	for _, seg := range segments {
		if len(seg) > MaxFrameSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(seg))
		}
	}
	if !s.Verify(signature, segments...) {
		return nil, ErrBadSignature
	}

	m := &Message{
		Identities: frames[:di],
		Content:    json.RawMessage(segments[3]),
		Buffers:    body[5:],
	}
	if err := json.Unmarshal(segments[0], &m.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if err := json.Unmarshal(segments[1], &m.Parent); err != nil {
		return nil, fmt.Errorf("decode parent header: %w", err)
	}
	if err := json.Unmarshal(segments[2], &m.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
