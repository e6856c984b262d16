package service

import (
	"time"

	"github.com/espixelstick/esps-go/pkg/connection"
	"github.com/espixelstick/esps-go/pkg/log"
	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/wire"
)

const (
	controlPing  = log.ControlMsgPing
	controlPong  = log.ControlMsgPong
	controlClose = log.ControlMsgClose
)

func (s *Session) protocolEvent(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    s.clock.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		LocalRole:    log.RoleClient,
		RemoteAddr:   s.config.URL,
		DeviceName:   s.deviceName,
	}
}

func (s *Session) logOutbound(msg wire.Outbound) {
	if s.config.ProtocolLogger == nil {
		return
	}
	e := s.protocolEvent(log.DirectionOut, log.LayerWire, log.CategoryMessage)
	e.Message = &log.MessageEvent{
		Type:          log.MessageTypeCommand,
		Text:          truncate(msg.String()),
		ResponseClass: msg.Class().String(),
	}
	s.config.ProtocolLogger.Log(e)
}

func (s *Session) logInbound(msg wire.Inbound, f transport.Frame, latency *time.Duration) {
	if s.config.ProtocolLogger == nil {
		return
	}
	e := s.protocolEvent(log.DirectionIn, log.LayerWire, log.CategoryMessage)
	me := &log.MessageEvent{
		Type:    log.MessageTypeReply,
		Kind:    msg.Kind().String(),
		Latency: latency,
	}
	if f.Binary {
		me.Type = log.MessageTypeStream
	} else {
		me.Text = truncate(string(f.Data))
	}
	switch m := msg.(type) {
	case *wire.ConfigReply:
		me.Section = string(m.Section)
		me.Payload = m.Data
	case *wire.StatusReply:
		me.Payload = m.Data
	case *wire.AdminReply:
		me.Payload = m.Data
	}
	e.Message = me
	s.config.ProtocolLogger.Log(e)
}

func (s *Session) logControl(t log.ControlMsgType, reason string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	dir := log.DirectionOut
	if t == controlPong {
		dir = log.DirectionIn
	}
	e := s.protocolEvent(dir, log.LayerSession, log.CategoryControl)
	e.ControlMsg = &log.ControlMsgEvent{Type: t, Reason: reason}
	s.config.ProtocolLogger.Log(e)
}

func (s *Session) logState(old, next connection.State, reason string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	e := s.protocolEvent(log.DirectionOut, log.LayerSession, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySession,
		OldState: old.String(),
		NewState: next.String(),
		Reason:   reason,
	}
	s.config.ProtocolLogger.Log(e)
}

func (s *Session) logError(context string, err error) {
	if s.config.ProtocolLogger == nil {
		return
	}
	e := s.protocolEvent(log.DirectionOut, log.LayerSession, log.CategoryError)
	e.Error = &log.ErrorEventData{
		Layer:   log.LayerSession,
		Message: err.Error(),
		Context: context,
	}
	s.config.ProtocolLogger.Log(e)
}

func truncate(text string) string {
	if len(text) > log.MaxFrameData {
		return text[:log.MaxFrameData]
	}
	return text
}
