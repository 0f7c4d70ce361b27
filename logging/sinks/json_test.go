package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wildkeep/server/logging"
)

func TestJSONFileAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.ndjson")
	sink, err := NewJSONFile(path, time.Minute)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}

	if err := sink.Write(logging.Event{Type: "guardian.captured", Tick: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Write(logging.Event{Type: "guardian.died", Tick: 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var events []logging.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev logging.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("file holds %d events, want 2", len(events))
	}
	if events[0].Type != "guardian.captured" || events[1].Tick != 2 {
		t.Fatalf("events mangled: %+v", events)
	}
}

func TestJSONFileWriteAfterCloseIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewJSONFile(path, time.Minute)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Write(logging.Event{Type: "late"}); err != nil {
		t.Fatalf("post-close Write returned %v, want silent discard", err)
	}
}

func TestNewJSONFileRejectsEmptyPath(t *testing.T) {
	if _, err := NewJSONFile("", time.Second); err == nil {
		t.Fatalf("empty path accepted")
	}
}

func TestMemorySink(t *testing.T) {
	mem := NewMemory()
	mem.Write(logging.Event{Type: "a"})
	mem.Write(logging.Event{Type: "b"})

	got := mem.Events()
	if len(got) != 2 || got[0].Type != "a" || got[1].Type != "b" {
		t.Fatalf("Events = %+v", got)
	}

	// The returned slice is a copy.
	got[0].Type = "mutated"
	if mem.Events()[0].Type != "a" {
		t.Fatalf("Events exposed internal storage")
	}

	mem.Reset()
	if len(mem.Events()) != 0 {
		t.Fatalf("Reset left events behind")
	}
}
