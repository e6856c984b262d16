package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/espixelstick/esps-go/pkg/log"
)

// Stats summarises a capture file.
type Stats struct {
	TotalEvents   int
	FirstEvent    time.Time
	LastEvent     time.Time
	ByLayer       map[log.Layer]int
	ByCategory    map[log.Category]int
	ByKind        map[string]int
	Commands      int
	Replies       int
	Snapshots     int
	Pings         int
	Pongs         int
	Errors        int
	LatencyCount  int
	LatencyTotal  time.Duration
	LatencyMax    time.Duration
	Connections   map[string]*ConnectionStats
	ConnectionIDs []string
}

// ConnectionStats holds per-connection counters.
type ConnectionStats struct {
	ID         string
	Device     string
	RemoteAddr string
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Commands   int
	Replies    int
	Errors     int
}

// AverageLatency returns the mean reply latency.
func (s *Stats) AverageLatency() time.Duration {
	if s.LatencyCount == 0 {
		return 0
	}
	return s.LatencyTotal / time.Duration(s.LatencyCount)
}

// Collect reads the matching events and accumulates statistics.
func Collect(path string, filter log.Filter) (*Stats, error) {
	stats := &Stats{
		ByLayer:     make(map[log.Layer]int),
		ByCategory:  make(map[log.Category]int),
		ByKind:      make(map[string]int),
		Connections: make(map[string]*ConnectionStats),
	}
	err := forEach(path, filter, func(event log.Event) error {
		stats.add(event)
		return nil
	}, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(stats.ConnectionIDs)
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	if s.FirstEvent.IsZero() || event.Timestamp.Before(s.FirstEvent) {
		s.FirstEvent = event.Timestamp
	}
	if event.Timestamp.After(s.LastEvent) {
		s.LastEvent = event.Timestamp
	}
	s.ByLayer[event.Layer]++
	s.ByCategory[event.Category]++

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{ID: event.ConnectionID, FirstSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
		s.ConnectionIDs = append(s.ConnectionIDs, event.ConnectionID)
	}
	conn.Events++
	conn.LastSeen = event.Timestamp
	if event.DeviceName != "" {
		conn.Device = event.DeviceName
	}
	if event.RemoteAddr != "" {
		conn.RemoteAddr = event.RemoteAddr
	}

	switch {
	case event.Message != nil:
		msg := event.Message
		if msg.Kind != "" {
			s.ByKind[msg.Kind]++
		}
		switch msg.Type {
		case log.MessageTypeCommand:
			s.Commands++
			conn.Commands++
		case log.MessageTypeReply:
			s.Replies++
			conn.Replies++
		case log.MessageTypeStream:
			s.Snapshots++
		}
		if msg.Latency != nil {
			s.LatencyCount++
			s.LatencyTotal += *msg.Latency
			if *msg.Latency > s.LatencyMax {
				s.LatencyMax = *msg.Latency
			}
		}
	case event.ControlMsg != nil:
		switch event.ControlMsg.Type {
		case log.ControlMsgPing:
			s.Pings++
		case log.ControlMsgPong:
			s.Pongs++
		}
	case event.Error != nil:
		s.Errors++
		conn.Errors++
	}
}

// RunStats prints statistics for the matching events.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := Collect(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, s *Stats) {
	fmt.Fprintln(w, "Capture Statistics")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Total events: %d\n", s.TotalEvents)
	if s.TotalEvents == 0 {
		return
	}
	fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
		s.FirstEvent.UTC().Format(time.RFC3339), s.LastEvent.UTC().Format(time.RFC3339),
		s.LastEvent.Sub(s.FirstEvent).Round(time.Millisecond))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if n := s.ByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", l, n)
		}
	}
	fmt.Fprintln(w, "By category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if n := s.ByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c, n)
		}
	}
	if len(s.ByKind) > 0 {
		fmt.Fprintln(w, "By kind:")
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-10s %d\n", k, s.ByKind[k])
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Commands: %d  Replies: %d  Snapshots: %d\n", s.Commands, s.Replies, s.Snapshots)
	fmt.Fprintf(w, "Pings: %d  Pongs: %d  Errors: %d\n", s.Pings, s.Pongs, s.Errors)
	if s.LatencyCount > 0 {
		fmt.Fprintf(w, "Reply latency: avg %s  max %s (%d samples)\n",
			formatDuration(s.AverageLatency()), formatDuration(s.LatencyMax), s.LatencyCount)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(s.ConnectionIDs))
	for _, id := range s.ConnectionIDs {
		c := s.Connections[id]
		fmt.Fprintf(w, "  %s", shortenConnID(id))
		if c.Device != "" {
			fmt.Fprintf(w, " %s", c.Device)
		}
		if c.RemoteAddr != "" {
			fmt.Fprintf(w, " (%s)", c.RemoteAddr)
		}
		fmt.Fprintf(w, ": %d events, %d commands, %d replies, %d errors, %s\n",
			c.Events, c.Commands, c.Replies, c.Errors, c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
	}
}
