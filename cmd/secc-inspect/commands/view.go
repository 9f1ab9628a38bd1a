// Package commands implements secc-inspect's event formatting, filtering
// and statistics, split out of main so the shell-interaction-free parts
// of the inspector are unit-testable, the way cmd/mash-log/commands
// separates view/stats/export logic from its own os.Args-driven main.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/mash-protocol/mash-go/pkg/protolog"
)

// ParseViewArgs turns a view/session command's free-form arguments into
// a protolog.Filter: any token matching "in"/"out" sets Direction, any
// token matching a category name sets Category, and anything else is
// taken as a session id.
func ParseViewArgs(args []string) protolog.Filter {
	var filter protolog.Filter
	for _, a := range args {
		switch strings.ToLower(a) {
		case "in":
			d := protolog.DirectionIn
			filter.Direction = &d
		case "out":
			d := protolog.DirectionOut
			filter.Direction = &d
		case "message":
			c := protolog.CategoryMessage
			filter.Category = &c
		case "state":
			c := protolog.CategoryState
			filter.Category = &c
		case "error":
			c := protolog.CategoryError
			filter.Category = &c
		case "timer":
			c := protolog.CategoryTimer
			filter.Category = &c
		default:
			filter.SessionID = a
		}
	}
	return filter
}

// Matches reports whether event satisfies filter. It mirrors the
// matching logic protolog.Reader applies while streaming, for callers
// that have already loaded events into memory.
func Matches(filter protolog.Filter, event protolog.Event) bool {
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if filter.Direction != nil && event.Direction != *filter.Direction {
		return false
	}
	if filter.Category != nil && event.Category != *filter.Category {
		return false
	}
	return true
}

// View writes every event in events matching filter to w, one line
// each, and returns how many matched.
func View(w io.Writer, events []protolog.Event, filter protolog.Filter) int {
	n := 0
	for _, e := range events {
		if !Matches(filter, e) {
			continue
		}
		FormatEvent(w, e)
		n++
	}
	return n
}

// FormatEvent writes a one-line human-readable rendering of event to w.
func FormatEvent(w io.Writer, e protolog.Event) {
	ts := e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	fmt.Fprintf(w, "%s [%s] %-3s %-7s", ts, ShortSessionID(e.SessionID), e.Direction, e.Category)
	switch {
	case e.Message != nil:
		fmt.Fprintf(w, " %s", e.Message.RequestType)
		if e.Message.ResponseCode != "" {
			fmt.Fprintf(w, " (%s)", e.Message.ResponseCode)
		}
	case e.StateChange != nil:
		fmt.Fprintf(w, " %s -> %s", e.StateChange.OldState, e.StateChange.NewState)
		if e.StateChange.Reason != "" {
			fmt.Fprintf(w, " (%s)", e.StateChange.Reason)
		}
	case e.Error != nil:
		fmt.Fprintf(w, " %s", e.Error.Message)
		if e.Error.Fatal {
			fmt.Fprint(w, " [fatal]")
		}
	case e.Timer != nil:
		fmt.Fprintf(w, " %s %s", e.Timer.Kind, e.Timer.Duration)
	}
	fmt.Fprintln(w)
}

// ShortSessionID returns the first 8 characters of id, for compact
// columnar output.
func ShortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
