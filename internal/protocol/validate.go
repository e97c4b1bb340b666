package protocol

// knownCommands is the full command enum understood by this protocol
// version. Anything else is UNKNOWN_COMMAND.
var knownCommands = map[Command]bool{
	CmdInitialize: true,
	CmdFormat:     true,
	CmdPing:       true,
	CmdShutdown:   true,
	CmdLog:        true,
	CmdError:      true,
}

// requestOnlyCommands are only ever sent client -> host as requests.
var requestOnlyCommands = map[Command]bool{
	CmdInitialize: true,
	CmdFormat:     true,
	CmdPing:       true,
	CmdShutdown:   true,
}

// notificationOnlyCommands are only ever sent host -> client as notifications.
var notificationOnlyCommands = map[Command]bool{
	CmdLog:   true,
	CmdError: true,
}

// ValidateEnvelope checks shape invariants that are independent of the
// payload schema: known command, required/absent requestId, and that the
// command is legal for the envelope's type. Per-payload field validation
// happens in the dispatch handlers, since the result differs (error
// response vs error notification) depending on whether a requestId could
// be recovered.
func ValidateEnvelope(e Envelope) error {
	if e.Command == "" || !knownCommands[e.Command] {
		return NewWireError(ErrUnknownCommand, "unknown command: "+string(e.Command), nil)
	}
	switch e.Type {
	case TypeRequest:
		if !requestOnlyCommands[e.Command] {
			return NewWireError(ErrInvalidMessage, "command is not a request: "+string(e.Command), nil)
		}
		if e.RequestID == "" {
			return NewWireError(ErrInvalidMessage, "request missing requestId", nil)
		}
	case TypeResponse:
		if e.RequestID == "" {
			return NewWireError(ErrInvalidMessage, "response missing requestId", nil)
		}
	case TypeNotification:
		if !notificationOnlyCommands[e.Command] {
			return NewWireError(ErrInvalidMessage, "command is not a notification: "+string(e.Command), nil)
		}
		if e.RequestID != "" {
			return NewWireError(ErrInvalidMessage, "notification must not carry a requestId", nil)
		}
	default:
		return NewWireError(ErrInvalidMessage, "unknown envelope type: "+string(e.Type), nil)
	}
	return nil
}

// ValidateRange reports whether r is an acceptable sub-range of content of
// length contentLen.
func ValidateRange(r *Range, contentLen int) bool {
	if r == nil {
		return true
	}
	return r.Start >= 0 && r.End > r.Start && r.End <= contentLen
}

// ClampOptions applies the host-side defensive clamps to formatting options
// that arrive out of range.
func ClampOptions(o FormattingOptions) FormattingOptions {
	if o.TabWidth < 1 {
		o.TabWidth = 1
	}
	if o.TabWidth > 16 {
		o.TabWidth = 16
	}
	if o.PrintWidth < 40 {
		o.PrintWidth = 40
	}
	if o.PrintWidth > 240 {
		o.PrintWidth = 240
	}
	if o.EndOfLine != "lf" && o.EndOfLine != "crlf" {
		o.EndOfLine = "lf"
	}
	return o
}
