package transport

// FrameReadWriter provides length-prefixed frame I/O. secc.Transport is
// structurally this same shape, so any *Framer satisfies it without an
// adapter.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction check.
var _ FrameReadWriter = (*Framer)(nil)
