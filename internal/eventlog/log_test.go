package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEmitBeforeStartIsDropped(t *testing.T) {
	el := New()
	if el.EmitSimple(EventTypeWarpStart, "warp", WarpPayload{}) {
		t.Error("expected emit on a stopped log to fail")
	}
}

func TestEventsAreWrittenAsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := New()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}

	el.EmitSimple(EventTypePortalEnter, "exit", PortalEnterPayload{Role: "exit"})
	el.EmitSimple(EventTypeNavigate, "exit", NavigatePayload{Role: "exit", Target: "https://portal.pieter.com/?portal=true"})
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		types = append(types, line["type"].(string))
	}

	if len(types) != 2 || types[0] != "portal_enter" || types[1] != "navigate" {
		t.Errorf("unexpected event types: %v", types)
	}
}

func TestPerSourceRateLimit(t *testing.T) {
	el := New()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerSource+20; i++ {
		if el.EmitSimple(EventTypePortalEnter, "exit", PortalEnterPayload{Role: "exit"}) {
			accepted++
		}
	}
	if accepted > MaxEventsPerSource+1 {
		t.Errorf("expected at most %d accepted events, got %d", MaxEventsPerSource+1, accepted)
	}

	// a different source has its own budget
	if !el.EmitSimple(EventTypeWarpStart, "warp", WarpPayload{}) {
		t.Error("expected an event from another source to be accepted")
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventTypePortalEnter, "portal_enter"},
		{EventTypeAvatarRejected, "avatar_rejected"},
		{EventType(200), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
