package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelWarn,
		"bogus":   LevelWarn,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func newTestLogger(tag string, lvl Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := &Logger{tag: tag, level: lvl, out: log.New(&buf, "", 0)}
	return l, &buf
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	l, buf := newTestLogger("worker", LevelWarn)
	l.Debugf("should not appear")
	l.Infof("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
	l.Warnf("this appears")
	if !strings.Contains(buf.String(), "this appears") {
		t.Fatalf("expected warn output, got %q", buf.String())
	}
}

func TestLoggerTagsLines(t *testing.T) {
	l, buf := newTestLogger("host", LevelDebug)
	l.Infof("hello %s", "world")
	if !strings.Contains(buf.String(), "[host] hello world") {
		t.Fatalf("expected tagged line, got %q", buf.String())
	}
}

func TestNewWithOutputUsesGivenDestination(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("custom", LevelInfo, log.New(&buf, "", 0))
	l.Infof("hi")
	if !strings.Contains(buf.String(), "[custom] hi") {
		t.Fatalf("expected output routed to the given destination, got %q", buf.String())
	}
}

func TestWithLevelDoesNotMutateOriginal(t *testing.T) {
	l, buf := newTestLogger("client", LevelError)
	quieter := l.WithLevel(LevelDebug)
	quieter.Debugf("visible via override")
	l.Debugf("should stay suppressed")

	out := buf.String()
	if !strings.Contains(out, "visible via override") {
		t.Fatalf("expected override logger output, got %q", out)
	}
	if strings.Contains(out, "should stay suppressed") {
		t.Fatalf("original logger's level was mutated: %q", out)
	}
}
