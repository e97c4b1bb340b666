// Package protocol defines the wire envelope and per-command payload
// contracts shared by the host runtime and the worker transport.
package protocol

import "encoding/json"

// Version is the current protocol version advertised during initialize.
const Version = 1

// MessageType is the envelope's type discriminant.
type MessageType string

const (
	TypeRequest      MessageType = "request"
	TypeResponse     MessageType = "response"
	TypeNotification MessageType = "notification"
)

// Command is the envelope's command discriminant.
type Command string

const (
	CmdInitialize Command = "initialize"
	CmdFormat     Command = "format"
	CmdPing       Command = "ping"
	CmdShutdown   Command = "shutdown"
	CmdLog        Command = "log"
	CmdError      Command = "error"
)

// Envelope is the unit of transport. Payload is left as raw JSON so the
// codec layer never needs to know the per-command schema; callers decode
// Payload into the concrete request/response/notification struct for
// Command via json.Unmarshal.
type Envelope struct {
	Version   int             `json:"version"`
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Command   Command         `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewRequest builds a request envelope, marshalling payload into Payload.
func NewRequest(requestID string, cmd Command, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: Version, Type: TypeRequest, RequestID: requestID, Command: cmd, Payload: raw}, nil
}

// NewResponse builds a response envelope matching a request's id and command.
func NewResponse(requestID string, cmd Command, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: Version, Type: TypeResponse, RequestID: requestID, Command: cmd, Payload: raw}, nil
}

// NewNotification builds a notification envelope. Notifications never carry
// a requestId.
func NewNotification(cmd Command, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: Version, Type: TypeNotification, Command: cmd, Payload: raw}, nil
}

// Decode unmarshals e.Payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
