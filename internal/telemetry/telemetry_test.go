package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSinkNilWhenPathEmpty(t *testing.T) {
	s := NewSink("")
	if s != nil {
		t.Fatal("expected nil sink for empty path")
	}
	if err := s.Append(Record{Success: true}); err != nil {
		t.Fatalf("Append on nil sink should be a no-op, got %v", err)
	}
}

func TestAppendWritesOneJSONLLinePerCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.jsonl")
	s := NewSink(path)

	if err := s.Append(Record{Timestamp: 1, Success: true, ElapsedMs: 12.5}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(Record{Timestamp: 2, Success: false, Error: "boom"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, r)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Timestamp != 1 || !lines[0].Success {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].Timestamp != 2 || lines[1].Error != "boom" {
		t.Errorf("second line = %+v", lines[1])
	}
}

func TestAppendCreatesFileIfMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "telemetry.jsonl")
	os.MkdirAll(filepath.Dir(path), 0o755)
	s := NewSink(path)
	if err := s.Append(Record{Success: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}
