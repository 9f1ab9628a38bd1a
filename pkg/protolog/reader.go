package protolog

import (
	"os"
)

// Filter narrows a Reader to the events an inspector cares about. A zero
// Filter matches everything.
type Filter struct {
	SessionID string
	Direction *Direction
	Category  *Category
}

func (f Filter) matches(e Event) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Direction != nil && e.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	return true
}

// Reader streams Events back out of a file a FileLogger wrote.
type Reader struct {
	file    *os.File
	decoder cborDecoder
	filter  Filter
}

type cborDecoder interface {
	Decode(v any) error
}

// NewReader opens path and returns a Reader over every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and returns a Reader that skips events
// filter rejects.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next event matching the reader's filter, or io.EOF
// once the file is exhausted.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.decoder.Decode(&e); err != nil {
			return Event{}, err
		}
		if r.filter.matches(e) {
			return e, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.file.Close() }
