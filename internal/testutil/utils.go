package testutil

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"
)

// TestLogger returns a logger for components under test. Output goes to
// stdout so goroutines that outlive the test can still log.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[gosocial-test] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// LogBuffer collects log output written from any goroutine.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogs redirects logger into a LogBuffer until the test ends.
func CaptureLogs(t *testing.T, logger *log.Logger) *LogBuffer {
	prev := logger.Writer()
	buf := &LogBuffer{}
	logger.SetOutput(buf)
	t.Cleanup(func() {
		logger.SetOutput(prev)
	})
	return buf
}
