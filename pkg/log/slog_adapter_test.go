package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, e Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(e)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        NewFrameEvent([]byte{1, 2, 3}, true),
	})

	if entry["msg"] != "protocol" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["frame_size"] != float64(3) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["binary"] != true {
		t.Errorf("binary: got %v", entry["binary"])
	}
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	latency := 40 * time.Millisecond
	entry := logOne(t, Event{
		ConnectionID: "conn-456",
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		DeviceName:   "esps-garage",
		Message: &MessageEvent{
			Type:    MessageTypeReply,
			Kind:    "CONFIG",
			Section: "system",
			Latency: &latency,
		},
	})

	if entry["msg_type"] != "REPLY" {
		t.Errorf("msg_type: got %v", entry["msg_type"])
	}
	if entry["kind"] != "CONFIG" || entry["section"] != "system" {
		t.Errorf("kind/section: got %v/%v", entry["kind"], entry["section"])
	}
	if entry["device"] != "esps-garage" {
		t.Errorf("device: got %v", entry["device"])
	}
	if _, ok := entry["latency"]; !ok {
		t.Error("latency missing")
	}
}

func TestSlogAdapterLogsStateAndError(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerSession,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySession,
			OldState: "OPEN",
			NewState: "RECONNECTING",
			Reason:   "no traffic within ceiling",
		},
	})
	if entry["new_state"] != "RECONNECTING" || entry["reason"] != "no traffic within ceiling" {
		t.Errorf("state entry = %v", entry)
	}

	entry = logOne(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerTransport, Message: "broken pipe", Context: "write"},
	})
	if entry["error_msg"] != "broken pipe" || entry["error_layer"] != "TRANSPORT" {
		t.Errorf("error entry = %v", entry)
	}
}
