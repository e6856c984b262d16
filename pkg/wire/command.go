package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SimpleCode is the second character of a simple 'X' command.
type SimpleCode byte

const (
	CodeStatus       SimpleCode = 'J'
	CodeAdmin        SimpleCode = 'A'
	CodePing         SimpleCode = 'P'
	CodeReboot       SimpleCode = '6'
	CodeFactoryReset SimpleCode = '7'
)

// String returns the two-character command text.
func (c SimpleCode) String() string {
	return "X" + string(rune(c))
}

// Section names a configuration area on the device.
type Section string

const (
	SectionSystem Section = "system"
	SectionInput  Section = "input_config"
	SectionOutput Section = "output_config"
	SectionFiles  Section = "files"
)

// ConfigSections are the sections saved, backed up and restored.
var ConfigSections = []Section{SectionSystem, SectionInput, SectionOutput}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionSystem, SectionInput, SectionOutput, SectionFiles:
		return true
	default:
		return false
	}
}

// StreamRequest asks the device for one binary pixel snapshot.
const StreamRequest = "V1"

// ResponseClass selects the response timeout for a message.
type ResponseClass uint8

const (
	// ClassNormal messages may take the device a while to answer.
	ClassNormal ResponseClass = iota

	// ClassShort messages are fire-and-forget or answered immediately.
	ClassShort
)

// String returns the class name.
func (c ResponseClass) String() string {
	switch c {
	case ClassNormal:
		return "NORMAL"
	case ClassShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// timePrefix is the leading text of a clock-sync command.
const timePrefix = `{"cmd":{"set":{"time"`

// shortPrefixes lists message prefixes that use the short timeout.
var shortPrefixes = []string{
	CodePing.String(),
	CodeReboot.String(),
	CodeFactoryReset.String(),
	timePrefix,
}

// ClassOf returns the response class for a text payload.
func ClassOf(text string) ResponseClass {
	for _, p := range shortPrefixes {
		if strings.HasPrefix(text, p) {
			return ClassShort
		}
	}
	return ClassNormal
}

// Outbound is a message ready to be queued. Values are immutable once
// built; construct them with the functions in this package.
type Outbound struct {
	text   string
	data   []byte
	class  ResponseClass
	binary bool
}

// Text returns an outbound text message classified by ClassOf.
func Text(payload string) Outbound {
	return Outbound{text: payload, class: ClassOf(payload)}
}

// Binary returns an outbound binary message. Binary messages use the
// normal response class.
func Binary(payload []byte) Outbound {
	data := make([]byte, len(payload))
	copy(data, payload)
	return Outbound{data: data, binary: true, class: ClassNormal}
}

// Simple returns the two-character command for code.
func Simple(code SimpleCode) Outbound {
	return Text(code.String())
}

// Stream returns the pixel snapshot request.
func Stream() Outbound {
	return Text(StreamRequest)
}

// IsBinary reports whether the message is sent as a binary frame.
func (m Outbound) IsBinary() bool { return m.binary }

// Class returns the message's response class.
func (m Outbound) Class() ResponseClass { return m.class }

// Payload returns the bytes to transmit.
func (m Outbound) Payload() []byte {
	if m.binary {
		out := make([]byte, len(m.data))
		copy(out, m.data)
		return out
	}
	return []byte(m.text)
}

// String returns the text payload, or a summary for binary messages.
func (m Outbound) String() string {
	if m.binary {
		return fmt.Sprintf("<binary %d bytes>", len(m.data))
	}
	return m.text
}

// IsZero reports whether m was never built.
func (m Outbound) IsZero() bool {
	return !m.binary && m.text == ""
}

type command struct {
	Cmd any `json:"cmd"`
}

// Get requests a configuration section.
func Get(section Section) (Outbound, error) {
	if !section.Valid() {
		return Outbound{}, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	return encode(command{Cmd: map[string]any{"get": section}})
}

// Set submits data as the new value of a configuration section.
func Set(section Section, data any) (Outbound, error) {
	if !section.Valid() || section == SectionFiles {
		return Outbound{}, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	return encode(command{Cmd: map[string]any{
		"set": map[string]any{string(section): data},
	}})
}

type fileRef struct {
	Name string `json:"name"`
}

// DeleteFiles removes the named files from the device's storage.
func DeleteFiles(names ...string) (Outbound, error) {
	if len(names) == 0 {
		return Outbound{}, ErrNoFiles
	}
	refs := make([]fileRef, len(names))
	for i, n := range names {
		refs[i] = fileRef{Name: n}
	}
	return encode(command{Cmd: map[string]any{
		"delete": map[string]any{"files": refs},
	}})
}

type timeSet struct {
	Cmd struct {
		Set struct {
			Time struct {
				TimeT int64 `json:"time_t"`
			} `json:"time"`
		} `json:"set"`
	} `json:"cmd"`
}

// SetTime pushes the wall clock to the device's RTC.
func SetTime(t time.Time) Outbound {
	var msg timeSet
	msg.Cmd.Set.Time.TimeT = t.Unix()
	out, err := encode(msg)
	if err != nil {
		// Encoding a fixed struct of integers cannot fail.
		panic(fmt.Sprintf("wire: encode time: %v", err))
	}
	return out
}

func encode(v any) (Outbound, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Outbound{}, fmt.Errorf("failed to encode command: %w", err)
	}
	return Text(string(b)), nil
}
