package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mash-protocol/mash-go/pkg/protolog"
)

func TestStats(t *testing.T) {
	events := []protolog.Event{
		{SessionID: "s1", Category: protolog.CategoryMessage},
		{SessionID: "s1", Category: protolog.CategoryMessage},
		{SessionID: "s2", Category: protolog.CategoryError},
	}

	var buf bytes.Buffer
	Stats(&buf, events)
	out := buf.String()

	if !strings.Contains(out, "3 total event(s) across 2 session(s)") {
		t.Errorf("expected summary line, got: %s", out)
	}
	if !strings.Contains(out, "MESSAGE  2") {
		t.Errorf("expected message count, got: %s", out)
	}
	if !strings.Contains(out, "ERROR    1") {
		t.Errorf("expected error count, got: %s", out)
	}
}

func TestLoadEvents_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/events.protolog"

	logger, err := protolog.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Log(protolog.Event{SessionID: "s1", Category: protolog.CategoryMessage, Message: &protolog.MessageEvent{RequestType: "SessionSetupReq"}})
	logger.Log(protolog.Event{SessionID: "s1", Category: protolog.CategoryState, StateChange: &protolog.StateChangeEvent{NewState: "ServiceDiscovery"}})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Message.RequestType != "SessionSetupReq" {
		t.Errorf("expected first event preserved, got %+v", events[0])
	}
}
