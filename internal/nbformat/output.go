package nbformat

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Output types defined by the notebook format.
const (
	OutputTypeStream        = "stream"
	OutputTypeDisplayData   = "display_data"
	OutputTypeExecuteResult = "execute_result"
	OutputTypeError         = "error"
)

// Stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// MIMEBundle maps MIME types to representation data. Text-like values may be
// stored as a single string or as a list of line strings.
type MIMEBundle map[string]any

// Text returns the value for a MIME type flattened to a string.
func (b MIMEBundle) Text(mime string) (string, bool) {
	v, ok := b[mime]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		var out string
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return "", false
			}
			out += s
		}
		return out, true
	default:
		return "", false
	}
}

// Has reports whether the bundle carries a representation for mime.
func (b MIMEBundle) Has(mime string) bool {
	_, ok := b[mime]
	return ok
}

// PlainText returns the text/plain representation, if present.
func (b MIMEBundle) PlainText() (string, bool) {
	return b.Text("text/plain")
}

// MIMETypes returns the bundle's MIME types in sorted order.
func (b MIMEBundle) MIMETypes() []string {
	types := make([]string, 0, len(b))
	for mime := range b {
		types = append(types, mime)
	}
	sort.Strings(types)
	return types
}

// Output is one entry of a code cell's output array. A single struct covers
// all four output types; which fields are meaningful depends on Type.
type Output struct {
	Type string `json:"output_type"`

	// stream
	Name string     `json:"name,omitempty"`
	Text SourceText `json:"text,omitempty"`

	// display_data and execute_result
	Data     MIMEBundle     `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// execute_result
	ExecutionCount *int `json:"execution_count,omitempty"`

	// error
	ErrName   string   `json:"ename,omitempty"`
	ErrValue  string   `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`
}

// Stream builds a stream output.
func Stream(name, text string) Output {
	return Output{Type: OutputTypeStream, Name: name, Text: SplitLines(text)}
}

// ExecuteResult builds an execute_result output.
func ExecuteResult(count int, data MIMEBundle, metadata map[string]any) Output {
	c := count
	return Output{Type: OutputTypeExecuteResult, ExecutionCount: &c, Data: data, Metadata: metadata}
}

// DisplayData builds a display_data output.
func DisplayData(data MIMEBundle, metadata map[string]any) Output {
	return Output{Type: OutputTypeDisplayData, Data: data, Metadata: metadata}
}

// ErrorOutput builds an error output.
func ErrorOutput(name, value string, traceback []string) Output {
	return Output{Type: OutputTypeError, ErrName: name, ErrValue: value, Traceback: traceback}
}

// Validate checks structural requirements for the output's type.
func (o Output) Validate() error {
	switch o.Type {
	case OutputTypeStream:
		if o.Name != StreamStdout && o.Name != StreamStderr {
			return fmt.Errorf("stream output has invalid name %q", o.Name)
		}
	case OutputTypeExecuteResult:
		if o.ExecutionCount == nil {
			return fmt.Errorf("execute_result output missing execution_count")
		}
	case OutputTypeDisplayData, OutputTypeError:
	default:
		return fmt.Errorf("unknown output_type %q", o.Type)
	}
	return nil
}

// AppendStream appends stream text to outs, merging into the final entry
// when it is a stream with the same name. Stored notebooks keep consecutive
// same-name stream writes as one output, and capture follows suit.
func AppendStream(outs []Output, name, text string) []Output {
	if n := len(outs); n > 0 {
		last := &outs[n-1]
		if last.Type == OutputTypeStream && last.Name == name {
			last.Text = SplitLines(last.Text.Join() + text)
			return outs
		}
	}
	return append(outs, Stream(name, text))
}

// MarshalJSON emits exactly the keys the output's type defines. Display and
// result outputs always carry data and metadata objects, error outputs
// always carry a traceback array, and fields from other types never leak.
func (o Output) MarshalJSON() ([]byte, error) {
	switch o.Type {
	case OutputTypeStream:
		return json.Marshal(struct {
			Type string     `json:"output_type"`
			Name string     `json:"name"`
			Text SourceText `json:"text"`
		}{o.Type, o.Name, o.Text})
	case OutputTypeExecuteResult:
		return json.Marshal(struct {
			Type     string         `json:"output_type"`
			Count    *int           `json:"execution_count"`
			Data     MIMEBundle     `json:"data"`
			Metadata map[string]any `json:"metadata"`
		}{o.Type, o.ExecutionCount, nonNilBundle(o.Data), nonNilMap(o.Metadata)})
	case OutputTypeDisplayData:
		return json.Marshal(struct {
			Type     string         `json:"output_type"`
			Data     MIMEBundle     `json:"data"`
			Metadata map[string]any `json:"metadata"`
		}{o.Type, nonNilBundle(o.Data), nonNilMap(o.Metadata)})
	case OutputTypeError:
		tb := o.Traceback
		if tb == nil {
			tb = []string{}
		}
		return json.Marshal(struct {
			Type      string   `json:"output_type"`
			ErrName   string   `json:"ename"`
			ErrValue  string   `json:"evalue"`
			Traceback []string `json:"traceback"`
		}{o.Type, o.ErrName, o.ErrValue, tb})
	default:
		type passthrough Output
		return json.Marshal(passthrough(o))
	}
}

func nonNilBundle(b MIMEBundle) MIMEBundle {
	if b == nil {
		return MIMEBundle{}
	}
	return b
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// marshalOutputs serializes an output list, normalizing nil to the empty
// array the format requires.
func marshalOutputs(outs []Output) ([]byte, error) {
	if outs == nil {
		outs = []Output{}
	}
	return json.Marshal(outs)
}
