// Package telemetry appends one JSONL record per format() call: open
// with O_APPEND|O_CREATE|O_WRONLY, marshal one record, write one line.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/loom/formatbridge/internal/protocol"
)

// Record is one telemetry line.
type Record struct {
	Timestamp         int64                      `json:"timestamp"`
	Success           bool                       `json:"success"`
	ElapsedMs         float64                    `json:"elapsedMs"`
	Diagnostics       int                        `json:"diagnostics"`
	Error             string                     `json:"error,omitempty"`
	Options           protocol.FormattingOptions `json:"options"`
	Range             *protocol.Range            `json:"range,omitempty"`
	ManagedMemoryMb   *float64                   `json:"managedMemoryMb,omitempty"`
	WorkingSetMb      *float64                   `json:"workingSetMb,omitempty"`
	WorkingSetDeltaMb *float64                   `json:"workingSetDeltaMb,omitempty"`
	ErrorCode         string                     `json:"errorCode,omitempty"`
	MemoryBudgetMb    float64                    `json:"memoryBudgetMb"`
}

// Sink appends Records to a file. A nil Sink (no TELEMETRY_FILE set) is a
// valid no-op sink.
type Sink struct {
	mu   sync.Mutex
	path string
}

// NewSink returns nil if path is empty: telemetry is optional.
func NewSink(path string) *Sink {
	if path == "" {
		return nil
	}
	return &Sink{path: path}
}

// Append writes one JSONL record. Failures are swallowed after being
// returned so callers can choose to log-and-continue; telemetry must never
// fail a format() call.
func (s *Sink) Append(r Record) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(r)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}
