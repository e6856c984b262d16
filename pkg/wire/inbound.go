package wire

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/espixelstick/esps-go/pkg/tree"
)

// Kind identifies an inbound message type.
type Kind uint8

const (
	KindUnrecognized Kind = iota
	KindStatus
	KindAdmin
	KindPing
	KindConfig
	KindFileList
	KindAck
	KindStream
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "STATUS"
	case KindAdmin:
		return "ADMIN"
	case KindPing:
		return "PING"
	case KindConfig:
		return "CONFIG"
	case KindFileList:
		return "FILE_LIST"
	case KindAck:
		return "ACK"
	case KindStream:
		return "STREAM"
	default:
		return "UNRECOGNIZED"
	}
}

// Inbound is a decoded device message. The concrete type is one of
// *StatusReply, *AdminReply, *PingReply, *ConfigReply, *FileList, *Ack,
// *StreamFrame or *Unrecognized.
type Inbound interface {
	Kind() Kind
}

// Verb is the envelope a structured reply arrived in.
type Verb string

const (
	VerbNone Verb = ""
	VerbGet  Verb = "get"
	VerbSet  Verb = "set"
)

// StatusReply answers XJ.
type StatusReply struct {
	Data tree.Tree
}

// AdminReply answers XA.
type AdminReply struct {
	Data tree.Tree
}

// PingReply answers XP. It carries no payload.
type PingReply struct{}

// ConfigReply carries one configuration section.
type ConfigReply struct {
	Verb    Verb
	Section Section
	Data    tree.Tree
}

// Ack is a bare acknowledgement. OK is false when the device answered
// with anything but "OK".
type Ack struct {
	OK     bool
	Detail string
}

// StreamFrame is a binary pixel snapshot.
type StreamFrame struct {
	Pixels []byte
}

// Unrecognized holds a frame that matched no known shape.
type Unrecognized struct {
	Raw    string
	Reason string
}

func (*StatusReply) Kind() Kind { return KindStatus }
func (*AdminReply) Kind() Kind { return KindAdmin }
func (*PingReply) Kind() Kind { return KindPing }
func (*ConfigReply) Kind() Kind { return KindConfig }
func (*FileList) Kind() Kind { return KindFileList }
func (*Ack) Kind() Kind { return KindAck }
func (*StreamFrame) Kind() Kind { return KindStream }
func (*Unrecognized) Kind() Kind { return KindUnrecognized }

// Decode classifies a frame. Binary frames are always stream snapshots.
// Text frames are matched against the simple reply prefixes first, then
// decoded as JSON and classified by their top-level keys. Decode never
// fails; malformed frames become *Unrecognized.
func Decode(data []byte, binary bool) Inbound {
	if binary {
		pixels := make([]byte, len(data))
		copy(pixels, data)
		return &StreamFrame{Pixels: pixels}
	}
	text := string(data)
	if len(text) == 0 {
		return &Unrecognized{Reason: ErrEmptyFrame.Error()}
	}

	if len(text) >= 2 && text[0] == 'X' {
		return decodeSimple(text)
	}
	return decodeJSON(text)
}

// DecodeText is Decode for a text frame.
func DecodeText(text string) Inbound {
	return Decode([]byte(text), false)
}

func decodeSimple(text string) Inbound {
	code, body := SimpleCode(text[1]), strings.TrimSpace(text[2:])
	switch code {
	case CodePing:
		return &PingReply{}
	case CodeStatus, CodeAdmin:
		t, err := decodeObject(body)
		if err != nil {
			return &Unrecognized{Raw: text, Reason: err.Error()}
		}
		if code == CodeStatus {
			return &StatusReply{Data: t}
		}
		return &AdminReply{Data: t}
	default:
		return &Unrecognized{Raw: text, Reason: "unknown simple reply " + code.String()}
	}
}

func decodeJSON(text string) Inbound {
	root, err := decodeObject(text)
	if err != nil {
		return &Unrecognized{Raw: text, Reason: err.Error()}
	}

	if cmd, ok := root["cmd"]; ok {
		return decodeAck(cmd)
	}

	verb := VerbNone
	body := root
	for _, v := range []Verb{VerbGet, VerbSet} {
		if inner, ok := root[string(v)].(map[string]any); ok {
			verb, body = v, inner
			break
		}
	}

	for _, s := range []Section{SectionOutput, SectionInput, SectionSystem} {
		if data, ok := body[string(s)].(map[string]any); ok {
			return &ConfigReply{Verb: verb, Section: s, Data: data}
		}
	}
	if _, ok := body[string(SectionFiles)]; ok {
		fl, err := decodeFileList(body)
		if err != nil {
			return &Unrecognized{Raw: text, Reason: err.Error()}
		}
		return fl
	}
	if _, ok := body["OK"]; ok {
		return &Ack{OK: true}
	}
	if verb == VerbSet {
		// A set echo with no known section still confirms the write.
		return &Ack{OK: true, Detail: "set"}
	}
	return &Unrecognized{Raw: text, Reason: "no known top-level key"}
}

func decodeAck(cmd any) Inbound {
	s, ok := cmd.(string)
	if !ok {
		b, _ := json.Marshal(cmd)
		return &Ack{OK: false, Detail: string(b)}
	}
	return &Ack{OK: strings.EqualFold(s, "OK"), Detail: s}
}

func decodeObject(text string) (tree.Tree, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotObject
	}
	return out, nil
}
