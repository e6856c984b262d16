package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espixelstick/esps-go/pkg/log"
)

var base = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func writeCapture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.elog")
	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func sampleEvents() []log.Event {
	latency := 12 * time.Millisecond
	return []log.Event{
		{
			Timestamp: base, ConnectionID: "conn-aaaa-1111", Direction: log.DirectionOut,
			Layer: log.LayerTransport, Category: log.CategoryMessage,
			Frame: log.NewFrameEvent([]byte("XJ"), false),
		},
		{
			Timestamp: base.Add(time.Millisecond), ConnectionID: "conn-aaaa-1111", Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeCommand, Kind: "STATUS", Text: "XJ", ResponseClass: "short"},
		},
		{
			Timestamp: base.Add(13 * time.Millisecond), ConnectionID: "conn-aaaa-1111", Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage, DeviceName: "porch",
			Message: &log.MessageEvent{
				Type: log.MessageTypeReply, Kind: "STATUS", Latency: &latency,
				Payload: map[string]any{"status": map[string]any{"system": map[string]any{"freeheap": "120000"}}},
			},
		},
		{
			Timestamp: base.Add(time.Second), ConnectionID: "conn-bbbb-2222", Direction: log.DirectionOut,
			Layer: log.LayerSession, Category: log.CategoryControl,
			ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgPing},
		},
		{
			Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-bbbb-2222",
			Layer: log.LayerSession, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "CONNECTED", NewState: "DISCONNECTED", Reason: "pong timeout"},
		},
		{
			Timestamp: base.Add(3 * time.Second), ConnectionID: "conn-bbbb-2222",
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection refused", Context: "dial"},
		},
	}
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayer("Wire")
	require.NoError(t, err)
	assert.Equal(t, log.LayerWire, l)
	_, err = ParseLayer("service")
	assert.Error(t, err)

	d, err := ParseDirection("IN")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionIn, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)

	c, err := ParseCategory("state")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryState, c)
	_, err = ParseCategory("snapshot")
	assert.Error(t, err)
}

func TestFilterOptionsBuild(t *testing.T) {
	f, err := FilterOptions{
		Kind:      "status",
		Layer:     "wire",
		TimeStart: "2026-03-14T09:00:00Z",
	}.Build()
	require.NoError(t, err)
	assert.Equal(t, "STATUS", f.MessageKind)
	require.NotNil(t, f.Layer)
	assert.Equal(t, log.LayerWire, *f.Layer)
	require.NotNil(t, f.TimeStart)
	assert.Nil(t, f.TimeEnd)

	_, err = FilterOptions{TimeEnd: "yesterday"}.Build()
	assert.Error(t, err)
}

func TestViewFormatsEvents(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "2026-03-14T09:26:53.589793Z [conn:conn-aaa] OUT TRANSPORT Frame")
	assert.Contains(t, out, "Text: XJ")
	assert.Contains(t, out, "COMMAND STATUS")
	assert.Contains(t, out, "Class: short")
	assert.Contains(t, out, "Latency: 12.000ms")
	assert.Contains(t, out, `"freeheap":"120000"`)
	assert.Contains(t, out, "CTRL PING")
	assert.Contains(t, out, "CONNECTED -> DISCONNECTED")
	assert.Contains(t, out, "Reason: pong timeout")
	assert.Contains(t, out, "Message: connection refused")
}

func TestViewFiltersByKind(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{MessageKind: "STATUS"}, &buf))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "STATUS"))
	assert.NotContains(t, out, "PING")
}

func TestViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "nope.elog"), log.Filter{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestExportJSONL(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", log.Filter{}, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)

	var reply map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &reply))
	assert.Equal(t, "porch", reply["DeviceName"])
}

func TestExportCSV(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	layer := log.LayerWire

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", log.Filter{Layer: &layer}, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,connection_id"))
	assert.Contains(t, lines[1], "message,STATUS,,,XJ")
	assert.Contains(t, lines[2], "porch,message,STATUS,,12000,")
}

func TestExportUnknownFormat(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	err := RunExport(path, "xml", log.Filter{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestFilterWritesCapture(t *testing.T) {
	path := writeCapture(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.elog")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, out, log.Filter{ConnectionID: "conn-bbbb-2222"}, &buf))
	assert.Contains(t, buf.String(), "Filtered 3 events")

	stats, err := Collect(out, log.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, []string{"conn-bbbb-2222"}, stats.ConnectionIDs)
}

func TestStats(t *testing.T) {
	path := writeCapture(t, sampleEvents())

	stats, err := Collect(path, log.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalEvents)
	assert.Equal(t, 1, stats.Commands)
	assert.Equal(t, 1, stats.Replies)
	assert.Equal(t, 1, stats.Pings)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.ByKind["STATUS"])
	assert.Equal(t, 12*time.Millisecond, stats.AverageLatency())
	assert.True(t, stats.FirstEvent.Equal(base))
	assert.True(t, stats.LastEvent.Equal(base.Add(3*time.Second)))
	require.Len(t, stats.ConnectionIDs, 2)
	assert.Equal(t, "porch", stats.Connections["conn-aaaa-1111"].Device)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, log.Filter{}, &buf))
	assert.Contains(t, buf.String(), "Total events: 6")
	assert.Contains(t, buf.String(), "Reply latency: avg 12.000ms")
	assert.Contains(t, buf.String(), "conn-aaa porch")
}

func TestStatsEmpty(t *testing.T) {
	path := writeCapture(t, nil)
	var buf bytes.Buffer
	require.NoError(t, RunStats(path, log.Filter{}, &buf))
	assert.Contains(t, buf.String(), "Total events: 0")
}
