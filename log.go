package pokebattle

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// A Logger tees log output to stderr and to log/latest.txt.
// The previous session's log is kept as log/last.txt.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// NewLogger rotates and opens the log files.
// Pass it to log.SetOutput.
func NewLogger() (*Logger, error) {
	if err := os.MkdirAll("log", 0775); err != nil {
		return nil, err
	}

	latest := filepath.Join("log", "latest.txt")
	os.Rename(latest, filepath.Join("log", "last.txt"))

	f, err := os.OpenFile(latest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	return &Logger{file: f}, nil
}

// Write implements io.Writer
func (l *Logger) Write(p []byte) (int, error) {
	os.Stderr.Write(p)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return len(p), nil
	}

	if _, err := l.file.Write(p); err != nil {
		return len(p), err
	}

	return len(p), nil
}

// Close flushes and closes the log file; Write keeps working
// afterwards, writing to stderr only
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil

	return err
}

var _ io.Writer = (*Logger)(nil)
