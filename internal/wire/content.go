package wire

// Reply status values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// Kernel execution states announced on iopub.
const (
	StateBusy     = "busy"
	StateIdle     = "idle"
	StateStarting = "starting"
)

// ExecuteRequest asks the kernel to run code.
type ExecuteRequest struct {
	Code            string         `json:"code"`
	Silent          bool           `json:"silent"`
	StoreHistory    bool           `json:"store_history"`
	UserExpressions map[string]any `json:"user_expressions"`
	AllowStdin      bool           `json:"allow_stdin"`
	StopOnError     bool           `json:"stop_on_error"`
}

// ExecuteReply reports how an execute_request finished.
type ExecuteReply struct {
	Status         string   `json:"status"`
	ExecutionCount int      `json:"execution_count"`
	EName          string   `json:"ename,omitempty"`
	EValue         string   `json:"evalue,omitempty"`
	Traceback      []string `json:"traceback,omitempty"`
}

// LanguageInfo describes the kernel's implementation language.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	MIMEType      string `json:"mimetype"`
	FileExtension string `json:"file_extension"`
}

// KernelInfoReply answers kernel_info_request.
type KernelInfoReply struct {
	Status                string       `json:"status"`
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
}

// Status announces an execution state change.
type Status struct {
	ExecutionState string `json:"execution_state"`
}

// Stream carries kernel stdout or stderr text.
type Stream struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ExecuteInput rebroadcasts the code a kernel started running.
type ExecuteInput struct {
	Code           string `json:"code"`
	ExecutionCount int    `json:"execution_count"`
}

// ExecuteResult carries the value of the last expression.
type ExecuteResult struct {
	ExecutionCount int            `json:"execution_count"`
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata"`
}

// Transient carries display routing hints.
type Transient struct {
	DisplayID string `json:"display_id,omitempty"`
}

// DisplayData carries rich display output.
type DisplayData struct {
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
	Transient Transient      `json:"transient,omitempty"`
}

// ErrorContent reports an exception.
type ErrorContent struct {
	EName     string   `json:"ename"`
	EValue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// ClearOutput asks frontends to drop accumulated output. Wait defers the
// clear until the next output arrives, which animation loops rely on to
// avoid flicker.
type ClearOutput struct {
	Wait bool `json:"wait"`
}

// ShutdownRequest asks the kernel to exit, or to restart when Restart is
// set.
type ShutdownRequest struct {
	Restart bool `json:"restart"`
}

// ShutdownReply confirms a shutdown_request.
type ShutdownReply struct {
	Status  string `json:"status"`
	Restart bool   `json:"restart"`
}

// InterruptReply confirms an interrupt_request.
type InterruptReply struct {
	Status string `json:"status"`
}

// InputRequest asks the client for a line of stdin.
type InputRequest struct {
	Prompt   string `json:"prompt"`
	Password bool   `json:"password"`
}

// InputReply answers an input_request.
type InputReply struct {
	Value string `json:"value"`
}

// IsCompleteRequest asks whether code forms a complete statement.
type IsCompleteRequest struct {
	Code string `json:"code"`
}

// IsCompleteReply reports "complete", "incomplete", "invalid", or
// "unknown", with the suggested continuation indent.
type IsCompleteReply struct {
	Status string `json:"status"`
	Indent string `json:"indent,omitempty"`
}

// CompleteRequest asks for completions at a cursor offset.
type CompleteRequest struct {
	Code      string `json:"code"`
	CursorPos int    `json:"cursor_pos"`
}

// CompleteReply lists completion matches for a complete_request.
type CompleteReply struct {
	Status      string   `json:"status"`
	Matches     []string `json:"matches"`
	CursorStart int      `json:"cursor_start"`
	CursorEnd   int      `json:"cursor_end"`
}
