package worker

import (
	"bytes"
	"strings"

	"github.com/loom/formatbridge/internal/logging"
)

// stderrForwarder turns the host's raw stderr byte stream into log lines at
// debug level. Human-readable diagnostics are written to the host's
// standard error stream; the client forwards them at debug level.
type stderrForwarder struct {
	log *logging.Logger
	buf []byte
}

func (s *stderrForwarder) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	for {
		idx := bytes.IndexByte(s.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(s.buf[:idx]), "\r")
		s.buf = s.buf[idx+1:]
		if line != "" {
			s.log.Debugf("host stderr: %s", line)
		}
	}
	return len(p), nil
}
