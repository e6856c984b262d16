package service

import (
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// dispatch hands a decoded frame to exactly one handler.
func (s *Session) dispatch(msg wire.Inbound) {
	switch m := msg.(type) {
	case *wire.StatusReply:
		s.handleStatus(m)
	case *wire.AdminReply:
		s.admin = m.Admin()
		s.emit(Event{Type: EventAdmin, ConnectionID: s.connID, Data: tree.CloneTree(s.admin)})
	case *wire.PingReply:
		s.logControl(controlPong, "")
	case *wire.ConfigReply:
		s.handleSection(m)
	case *wire.FileList:
		s.files = m
		s.emit(Event{Type: EventFiles, ConnectionID: s.connID, Files: copyFileList(m)})
		s.syncTime()
	case *wire.Ack:
		if !m.OK {
			s.debugLog("command rejected", "detail", m.Detail)
		}
	case *wire.StreamFrame:
		if s.config.FrameSink != nil {
			s.config.FrameSink(m.Pixels)
		}
		if s.streaming() {
			s.queue.Enqueue(wire.Stream())
		}
	case *wire.Unrecognized:
		s.debugLog("unrecognized frame dropped", "reason", m.Reason, "raw", m.Raw)
		s.emit(Event{Type: EventUnrecognized, ConnectionID: s.connID, Reason: m.Reason})
	}
}

func (s *Session) handleStatus(m *wire.StatusReply) {
	s.status = m.Data
	s.statusPending = false
	s.emit(Event{Type: EventStatus, ConnectionID: s.connID, Data: tree.CloneTree(m.Data)})

	devTime, ok := m.DeviceTime()
	if !ok {
		return
	}
	drift := s.clock.Now().Sub(devTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > s.config.TimeDriftThreshold {
		s.debugLog("device clock drift", "drift", drift)
		s.syncTime()
	}
}

func (s *Session) handleSection(m *wire.ConfigReply) {
	s.sections[m.Section] = m.Data
	if m.Section == wire.SectionSystem {
		if id, ok := tree.Get(m.Data, tree.ParsePath("device/id")); ok {
			if name, ok := id.(string); ok {
				s.deviceName = name
			}
		}
	}
	s.emit(Event{
		Type:         EventSection,
		ConnectionID: s.connID,
		Section:      m.Section,
		Data:         tree.CloneTree(m.Data),
	})
}

// replyConfirmsWrite reports whether reply acknowledges a set command.
func replyConfirmsWrite(reply wire.Inbound) bool {
	switch r := reply.(type) {
	case *wire.Ack:
		return r.OK
	case *wire.ConfigReply:
		return r.Verb == wire.VerbSet
	default:
		return false
	}
}

func copyFileList(l *wire.FileList) *wire.FileList {
	if l == nil {
		return nil
	}
	out := *l
	out.Files = append([]wire.FileEntry(nil), l.Files...)
	return &out
}
