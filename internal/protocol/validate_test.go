package protocol

import "testing"

func TestValidateEnvelopeUnknownCommand(t *testing.T) {
	err := ValidateEnvelope(Envelope{Type: TypeRequest, Command: "bogus", RequestID: "r1"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	var we *WireError
	if !asWireError(err, &we) {
		t.Fatalf("expected *WireError, got %T", err)
	}
	if we.Code != ErrUnknownCommand {
		t.Fatalf("expected %s, got %s", ErrUnknownCommand, we.Code)
	}
}

func TestValidateEnvelopeRequestMissingID(t *testing.T) {
	err := ValidateEnvelope(Envelope{Type: TypeRequest, Command: CmdPing})
	if err == nil {
		t.Fatal("expected error for request without requestId")
	}
}

func TestValidateEnvelopeNotificationCarryingID(t *testing.T) {
	err := ValidateEnvelope(Envelope{Type: TypeNotification, Command: CmdLog, RequestID: "nope"})
	if err == nil {
		t.Fatal("expected error for notification with requestId")
	}
}

func TestValidateEnvelopeCommandWrongKind(t *testing.T) {
	if err := ValidateEnvelope(Envelope{Type: TypeRequest, Command: CmdLog, RequestID: "r1"}); err == nil {
		t.Fatal("expected error: log is notification-only")
	}
	if err := ValidateEnvelope(Envelope{Type: TypeNotification, Command: CmdPing}); err == nil {
		t.Fatal("expected error: ping is request-only")
	}
}

func TestValidateEnvelopeHappyPaths(t *testing.T) {
	cases := []Envelope{
		{Type: TypeRequest, Command: CmdInitialize, RequestID: "1"},
		{Type: TypeResponse, Command: CmdFormat, RequestID: "1"},
		{Type: TypeNotification, Command: CmdError},
	}
	for _, e := range cases {
		if err := ValidateEnvelope(e); err != nil {
			t.Errorf("unexpected error for %+v: %v", e, err)
		}
	}
}

func TestValidateRange(t *testing.T) {
	cases := []struct {
		name string
		r    *Range
		n    int
		want bool
	}{
		{"nil is fine", nil, 10, true},
		{"in bounds", &Range{Start: 0, End: 5}, 10, true},
		{"end equals length", &Range{Start: 0, End: 10}, 10, true},
		{"end beyond length", &Range{Start: 0, End: 11}, 10, false},
		{"start negative", &Range{Start: -1, End: 5}, 10, false},
		{"empty range", &Range{Start: 5, End: 5}, 10, false},
		{"end before start", &Range{Start: 5, End: 2}, 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateRange(tc.r, tc.n); got != tc.want {
				t.Errorf("ValidateRange(%+v, %d) = %v, want %v", tc.r, tc.n, got, tc.want)
			}
		})
	}
}

func TestClampOptions(t *testing.T) {
	got := ClampOptions(FormattingOptions{TabWidth: 0, PrintWidth: 1000, EndOfLine: "weird"})
	if got.TabWidth != 1 {
		t.Errorf("tabWidth = %d, want 1", got.TabWidth)
	}
	if got.PrintWidth != 240 {
		t.Errorf("printWidth = %d, want 240", got.PrintWidth)
	}
	if got.EndOfLine != "lf" {
		t.Errorf("endOfLine = %q, want lf", got.EndOfLine)
	}

	got = ClampOptions(FormattingOptions{TabWidth: 99, PrintWidth: 1, EndOfLine: "crlf"})
	if got.TabWidth != 16 {
		t.Errorf("tabWidth = %d, want 16", got.TabWidth)
	}
	if got.PrintWidth != 40 {
		t.Errorf("printWidth = %d, want 40", got.PrintWidth)
	}
	if got.EndOfLine != "crlf" {
		t.Errorf("endOfLine = %q, want crlf (already valid)", got.EndOfLine)
	}
}

func asWireError(err error, target **WireError) bool {
	we, ok := err.(*WireError)
	if !ok {
		return false
	}
	*target = we
	return true
}
