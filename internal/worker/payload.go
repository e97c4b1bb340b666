package worker

import (
	"encoding/json"

	"github.com/loom/formatbridge/internal/protocol"
)

// callerPayload is the worker<->caller contract written into the shared
// buffer. It is deliberately decoupled from the wire envelope schema:
// callers never need to know about requestId, command, or envelope
// versioning, only status/formatted/diagnostics/metrics.
type callerPayload struct {
	Status      string                `json:"status"`
	Formatted   string                `json:"formatted,omitempty"`
	Diagnostics []protocol.Diagnostic `json:"diagnostics,omitempty"`
	Metrics     *protocol.Metrics     `json:"metrics,omitempty"`
	Message     string                `json:"message,omitempty"`
	ErrorCode   string                `json:"errorCode,omitempty"`
}

func okPayload(resp protocol.FormatResponse) []byte {
	b, _ := json.Marshal(callerPayload{
		Status:      "ok",
		Formatted:   resp.Formatted,
		Diagnostics: resp.Diagnostics,
		Metrics:     resp.Metrics,
	})
	return b
}

func errorResponsePayload(resp protocol.FormatResponse) []byte {
	b, _ := json.Marshal(callerPayload{Status: "error", Message: resp.Message, ErrorCode: resp.ErrorCode})
	return b
}

func errorPayload(err error) []byte {
	b, _ := json.Marshal(callerPayload{Status: "error", Message: err.Error()})
	return b
}
