package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/espixelstick/esps-go/pkg/log"
)

// RunExport writes the matching events as jsonl or csv.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return forEach(path, filter, func(event log.Event) error {
			if err := enc.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		}, "")
	case "csv":
		cw := csv.NewWriter(w)
		header := []string{"timestamp", "connection_id", "direction", "layer", "category",
			"device", "type", "kind", "section", "latency_us", "text"}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		err := forEach(path, filter, func(event log.Event) error {
			return cw.Write(csvRecord(event))
		}, "")
		cw.Flush()
		if err != nil {
			return err
		}
		return cw.Error()
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func csvRecord(event log.Event) []string {
	var kind, section, latency, text string
	typ := "unknown"
	switch {
	case event.Frame != nil:
		typ = "frame"
		if !event.Frame.Binary {
			text = string(event.Frame.Data)
		}
	case event.Message != nil:
		typ = "message"
		kind = event.Message.Kind
		section = event.Message.Section
		text = event.Message.Text
		if event.Message.Latency != nil {
			latency = strconv.FormatInt(event.Message.Latency.Microseconds(), 10)
		}
	case event.StateChange != nil:
		typ = "state_change"
		text = event.StateChange.NewState
	case event.ControlMsg != nil:
		typ = "control"
		kind = event.ControlMsg.Type.String()
	case event.Error != nil:
		typ = "error"
		text = event.Error.Message
	}
	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.DeviceName,
		typ,
		kind,
		section,
		latency,
		text,
	}
}
