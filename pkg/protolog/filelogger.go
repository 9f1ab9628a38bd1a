package protolog

import (
	"os"
	"sync"
)

// FileLogger appends every Event to a file as a CBOR stream, one value
// per call to Log. It is safe for concurrent use since a deployment may
// run several Handler loops, each logging from its own goroutine.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	enc    cborEncoder
	closed bool
}

// cborEncoder narrows the generated cbor.Encoder down to the one method
// FileLogger needs, so this file doesn't have to import the library type
// by name in two places.
type cborEncoder interface {
	Encode(v any) error
}

// NewFileLogger opens (creating if needed, appending if present) path and
// returns a FileLogger writing to it.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, enc: NewEncoder(f)}, nil
}

// Log encodes event and appends it. Encoding errors are swallowed:
// logging must never be the reason a session fails.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.enc.Encode(event)
}

// Close flushes and closes the underlying file. Safe to call more than
// once; Log silently no-ops after Close.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)

// MultiLogger fans one Event out to several Loggers, for running a
// console logger and a FileLogger side by side.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a Logger that forwards to every one of loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
