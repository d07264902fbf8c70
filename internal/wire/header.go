package wire

import (
	"os"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is the Jupyter messaging protocol version we speak.
const ProtocolVersion = "5.3"

// Message types sent on the shell channel.
const (
	MsgTypeKernelInfoRequest = "kernel_info_request"
	MsgTypeKernelInfoReply   = "kernel_info_reply"
	MsgTypeExecuteRequest    = "execute_request"
	MsgTypeExecuteReply      = "execute_reply"
	MsgTypeIsCompleteRequest = "is_complete_request"
	MsgTypeIsCompleteReply   = "is_complete_reply"
	MsgTypeCompleteRequest   = "complete_request"
	MsgTypeCompleteReply     = "complete_reply"
)

// Message types sent on the control channel.
const (
	MsgTypeShutdownRequest  = "shutdown_request"
	MsgTypeShutdownReply    = "shutdown_reply"
	MsgTypeInterruptRequest = "interrupt_request"
	MsgTypeInterruptReply   = "interrupt_reply"
)

// Message types broadcast on the iopub channel.
const (
	MsgTypeStatus            = "status"
	MsgTypeStream            = "stream"
	MsgTypeExecuteInput      = "execute_input"
	MsgTypeExecuteResult     = "execute_result"
	MsgTypeDisplayData       = "display_data"
	MsgTypeUpdateDisplayData = "update_display_data"
	MsgTypeError             = "error"
	MsgTypeClearOutput       = "clear_output"
)

// Message types on the stdin channel.
const (
	MsgTypeInputRequest = "input_request"
	MsgTypeInputReply   = "input_reply"
)

// dateLayout matches the microsecond ISO-8601 timestamps reference clients
// write.
const dateLayout = "2006-01-02T15:04:05.000000Z07:00"

// Header identifies one message and the session it belongs to.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// NewHeader builds a header with a fresh message ID and the current time.
func NewHeader(session, msgType string) Header {
	return Header{
		MsgID:    uuid.NewString(),
		Session:  session,
		Username: username(),
		Date:     time.Now().UTC().Format(dateLayout),
		MsgType:  msgType,
		Version:  ProtocolVersion,
	}
}

// IsZero reports whether the header is empty, as parent headers of
// client-initiated messages are.
func (h Header) IsZero() bool { return h == Header{} }

func username() string {
	for _, env := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(env); u != "" {
			return u
		}
	}
	return "nbkernel"
}
