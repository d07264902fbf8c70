package nbformat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceText is multiline cell text. The notebook format stores it either as
// one string or as a list of line strings where every line but the last
// keeps its trailing newline. Both encodings unmarshal; marshaling always
// produces the list form.
type SourceText []string

// SplitLines converts a string into SourceText, preserving trailing
// newlines on every line except the last.
func SplitLines(s string) SourceText {
	if s == "" {
		return SourceText{}
	}
	lines := strings.SplitAfter(s, "\n")
	// SplitAfter leaves a trailing empty element when s ends in a newline.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return SourceText(lines)
}

// Join returns the concatenated text.
func (s SourceText) Join() string {
	return strings.Join([]string(s), "")
}

// IsEmpty reports whether the source contains no text at all.
func (s SourceText) IsEmpty() bool {
	for _, line := range s {
		if line != "" {
			return false
		}
	}
	return true
}

// MarshalJSON serializes as a list of line strings.
func (s SourceText) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts a string or a list of strings.
func (s *SourceText) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = SplitLines(single)
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("source must be a string or list of strings: %w", err)
	}
	*s = SourceText(lines)
	return nil
}
