package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/mash-protocol/mash-go/pkg/protolog"
)

// Stats writes an event-count summary for events to w: total events,
// distinct sessions, and a per-category breakdown.
func Stats(w io.Writer, events []protolog.Event) {
	bySession := map[string]int{}
	byCategory := map[protolog.Category]int{}
	for _, e := range events {
		bySession[e.SessionID]++
		byCategory[e.Category]++
	}

	fmt.Fprintf(w, "%d total event(s) across %d session(s)\n", len(events), len(bySession))
	for _, cat := range []protolog.Category{protolog.CategoryMessage, protolog.CategoryState, protolog.CategoryError, protolog.CategoryTimer} {
		fmt.Fprintf(w, "  %-8s %d\n", cat.String(), byCategory[cat])
	}
}

// LoadEvents reads every event out of a protolog file at path.
func LoadEvents(path string) ([]protolog.Event, error) {
	r, err := protolog.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	var events []protolog.Event
	for {
		e, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return events, fmt.Errorf("read %s: %w", path, err)
		}
		events = append(events, e)
	}
	return events, nil
}
