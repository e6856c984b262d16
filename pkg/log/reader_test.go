package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.elog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	latency := 15 * time.Millisecond
	events := []Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Direction:    DirectionOut,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			RemoteAddr:   "ws://192.168.1.50/ws",
			Message: &MessageEvent{
				Type:          MessageTypeCommand,
				Text:          "XJ",
				ResponseClass: "NORMAL",
			},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message: &MessageEvent{
				Type:    MessageTypeReply,
				Kind:    "CONFIG",
				Section: "system",
				Payload: map[string]any{"device": map[string]any{"id": "esps"}},
				Latency: &latency,
			},
		},
	}

	r, err := NewReader(createTestLogFile(t, events))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	got := readAll(t, r)
	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", got[0].Timestamp, ts)
	}
	if got[0].Message == nil || got[0].Message.Text != "XJ" {
		t.Errorf("first message = %+v", got[0].Message)
	}
	if got[1].Message.Latency == nil || *got[1].Message.Latency != latency {
		t.Errorf("latency = %v", got[1].Message.Latency)
	}
	payload, ok := got[1].Message.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type %T", got[1].Message.Payload)
	}
	if _, ok := payload["device"]; !ok {
		t.Errorf("payload lost device key: %v", payload)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionOut, Category: CategoryMessage, Message: &MessageEvent{Type: MessageTypeCommand}},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionIn, Category: CategoryMessage, Message: &MessageEvent{Type: MessageTypeReply, Kind: "STATUS"}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Direction: DirectionIn, Category: CategoryControl, ControlMsg: &ControlMsgEvent{Type: ControlMsgPong}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", Category: CategoryState, DeviceName: "esps", StateChange: &StateChangeEvent{NewState: "OPEN"}},
	}
	path := createTestLogFile(t, events)

	in := DirectionIn
	control := CategoryControl
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"connection", Filter{ConnectionID: "a"}, 2},
		{"direction", Filter{Direction: &in}, 3},
		{"category", Filter{Category: &control}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"device", Filter{DeviceName: "esps"}, 1},
		{"kind", Filter{MessageKind: "STATUS"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()
			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.elog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{ConnectionID: "1"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(Event{ConnectionID: "2"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := len(readAll(t, r)); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func TestFileLoggerFlushesOnStateChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.elog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Log(Event{ConnectionID: "1", Category: CategoryMessage})
	logger.Log(Event{ConnectionID: "1", Category: CategoryState, StateChange: &StateChangeEvent{NewState: "CLOSED"}})

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := len(readAll(t, r)); got != 2 {
		t.Errorf("got %d events before Close, want 2", got)
	}
	if logger.Dropped() != 0 {
		t.Errorf("dropped %d events", logger.Dropped())
	}
}

func TestReaderStopsAtTruncatedTail(t *testing.T) {
	path := createTestLogFile(t, []Event{{ConnectionID: "1"}, {ConnectionID: "2"}})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Start of a map with five pairs, then nothing.
	if _, err := f.Write([]byte{0xa5, 0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := len(readAll(t, r)); got != 2 {
		t.Errorf("got %d events, want 2", got)
	}
}
