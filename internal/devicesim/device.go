// Package devicesim is an in-process ESPixelStick used by tests and by
// the esps-sim binary. It serves the WebSocket protocol on /ws and the
// HTTP side channel, and keeps its configuration in memory.
package devicesim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/espixelstick/esps-go/pkg/log"
	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
	"github.com/espixelstick/esps-go/pkg/webapi"
)

// Config configures a simulated device.
type Config struct {
	// DeviceID is reported as system/device/id.
	DeviceID string

	// Version is the firmware version reported by XA.
	Version string

	// Pixels is the size of each V1 snapshot in bytes.
	Pixels int

	// ClockOffset is added to the host clock to form the device clock.
	ClockOffset time.Duration

	// Now returns the host time. Defaults to time.Now.
	Now func() time.Time

	// Logger is used for debug logging. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger records every frame the device sees (optional).
	ProtocolLogger log.Logger
}

// Device is a simulated ESPixelStick.
type Device struct {
	config Config
	mux    *http.ServeMux

	mu         sync.Mutex
	sections   map[wire.Section]tree.Tree
	admin      tree.Tree
	files      []wire.FileEntry
	offset     time.Duration
	conns      map[*transport.Conn]struct{}
	received   []string
	silent     bool
	rejectSets bool
	uploads    [][]byte
	frame      byte
}

// New creates a device with a default configuration.
func New(config Config) *Device {
	if config.DeviceID == "" {
		config.DeviceID = "esps-sim"
	}
	if config.Version == "" {
		config.Version = "4.0.0-sim"
	}
	if config.Pixels <= 0 {
		config.Pixels = 8 * 3
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	d := &Device{
		config:   config,
		sections: defaultSections(config.DeviceID),
		admin: tree.Tree{
			"version":     config.Version,
			"built":       "sim",
			"BoardName":   "ESP32 Sim",
			"flashchipid": "c0ffee",
		},
		files: []wire.FileEntry{
			{Name: "show.fseq", Date: 1700000000, Length: 4096},
		},
		offset: config.ClockOffset,
		conns:  make(map[*transport.Conn]struct{}),
	}

	d.mux = http.NewServeMux()
	d.mux.HandleFunc("/ws", d.serveWebSocket)
	d.mux.HandleFunc("GET "+webapi.PathFiles, d.serveFiles)
	d.mux.HandleFunc("POST "+webapi.PathFileDelete+"{name}", d.serveDelete)
	d.mux.HandleFunc("POST "+webapi.PathUpdate, d.serveUpdate)
	return d
}

func defaultSections(id string) map[wire.Section]tree.Tree {
	return map[wire.Section]tree.Tree{
		wire.SectionSystem: {
			"device": map[string]any{"id": id, "blanktime": float64(5)},
			"network": map[string]any{
				"hostname": id,
				"ssid":     "lights",
				"dhcp":     true,
			},
		},
		wire.SectionInput: {
			"channels": map[string]any{
				"0": map[string]any{"type": float64(1), "e131": map[string]any{"universe": float64(1)}},
			},
		},
		wire.SectionOutput: {
			"channels": map[string]any{
				"0": map[string]any{"type": float64(1), "ws2811": map[string]any{"pixel_count": float64(170)}},
			},
		},
	}
}

// ServeHTTP implements http.Handler.
func (d *Device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mux.ServeHTTP(w, r)
}

func (d *Device) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ready := make(chan struct{})
	var conn *transport.Conn
	handler := transport.HandlerFuncs{
		Frame: func(f transport.Frame) {
			<-ready
			d.handleFrame(conn, f)
		},
		Close: func(error) {
			<-ready
			d.mu.Lock()
			delete(d.conns, conn)
			d.mu.Unlock()
		},
	}
	c, err := transport.Accept(w, r, transport.ConnectionConfig{
		Role:           log.RoleDevice,
		ProtocolLogger: d.config.ProtocolLogger,
		Logger:         d.config.Logger,
	}, handler)
	if err != nil {
		d.debugLog("accept failed", "error", err)
		return
	}
	conn = c
	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()
	close(ready)
	d.debugLog("client connected", "conn_id", c.ID(), "remote", r.RemoteAddr)
}

func (d *Device) handleFrame(conn *transport.Conn, f transport.Frame) {
	text := string(f.Data)

	d.mu.Lock()
	d.received = append(d.received, text)
	silent := d.silent
	d.mu.Unlock()
	if silent || f.Binary {
		return
	}

	replies, binary, reboot := d.respond(text)
	for _, r := range replies {
		if err := conn.SendText(r); err != nil {
			d.debugLog("send failed", "error", err)
			return
		}
	}
	if binary != nil {
		if err := conn.SendBinary(binary); err != nil {
			d.debugLog("send failed", "error", err)
		}
	}
	if reboot {
		d.debugLog("rebooting")
		conn.Close()
	}
}

// respond computes the answer to one inbound text frame.
func (d *Device) respond(text string) (replies []string, binary []byte, reboot bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch text {
	case wire.CodePing.String():
		return []string{"XP"}, nil, false
	case wire.CodeStatus.String():
		return []string{"XJ" + mustJSON(d.statusLocked())}, nil, false
	case wire.CodeAdmin.String():
		return []string{"XA" + mustJSON(map[string]any{"admin": d.admin})}, nil, false
	case wire.CodeReboot.String():
		return nil, nil, true
	case wire.CodeFactoryReset.String():
		d.sections = defaultSections(d.config.DeviceID)
		return nil, nil, true
	case wire.StreamRequest:
		return nil, d.snapshotLocked(), false
	}

	var msg struct {
		Cmd map[string]json.RawMessage `json:"cmd"`
	}
	if err := json.Unmarshal([]byte(text), &msg); err != nil || msg.Cmd == nil {
		return []string{`{"cmd":"unknown"}`}, nil, false
	}

	if raw, ok := msg.Cmd["get"]; ok {
		var section wire.Section
		if err := json.Unmarshal(raw, &section); err != nil {
			return []string{`{"cmd":"bad get"}`}, nil, false
		}
		return []string{d.getLocked(section)}, nil, false
	}
	if raw, ok := msg.Cmd["set"]; ok {
		return []string{d.setLocked(raw)}, nil, false
	}
	if raw, ok := msg.Cmd["delete"]; ok {
		var del struct {
			Files []struct {
				Name string `json:"name"`
			} `json:"files"`
		}
		if err := json.Unmarshal(raw, &del); err != nil {
			return []string{`{"cmd":"bad delete"}`}, nil, false
		}
		for _, f := range del.Files {
			d.deleteLocked(f.Name)
		}
		return []string{`{"cmd":"OK"}`}, nil, false
	}
	return []string{`{"cmd":"unknown"}`}, nil, false
}

func (d *Device) getLocked(section wire.Section) string {
	if section == wire.SectionFiles {
		return mustJSON(map[string]any{"get": d.fileListLocked()})
	}
	data, ok := d.sections[section]
	if !ok {
		return `{"cmd":"unknown section"}`
	}
	return mustJSON(map[string]any{"get": map[string]any{string(section): data}})
}

func (d *Device) setLocked(raw json.RawMessage) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return `{"cmd":"bad set"}`
	}
	if t, ok := body["time"]; ok {
		var ts struct {
			TimeT int64 `json:"time_t"`
		}
		if err := json.Unmarshal(t, &ts); err != nil {
			return `{"cmd":"bad time"}`
		}
		d.offset = time.Unix(ts.TimeT, 0).Sub(d.config.Now())
		return `{"cmd":"OK"}`
	}
	if d.rejectSets {
		return `{"cmd":"rejected"}`
	}
	for _, s := range wire.ConfigSections {
		v, ok := body[string(s)]
		if !ok {
			continue
		}
		var t tree.Tree
		if err := json.Unmarshal(v, &t); err != nil || t == nil {
			return `{"cmd":"bad section"}`
		}
		d.sections[s] = t
		return mustJSON(map[string]any{"set": map[string]any{string(s): t}})
	}
	return `{"cmd":"unknown section"}`
}

func (d *Device) deleteLocked(name string) bool {
	for i, f := range d.files {
		if f.Name == name {
			d.files = append(d.files[:i], d.files[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Device) statusLocked() map[string]any {
	return map[string]any{
		"status": map[string]any{
			"system": map[string]any{
				"freeheap":    "120000",
				"uptime":      float64(60000),
				"time":        float64(d.config.Now().Add(d.offset).Unix()),
				"SDinstalled": true,
			},
		},
	}
}

func (d *Device) fileListLocked() *wire.FileList {
	var used int64
	for _, f := range d.files {
		used += f.Length
	}
	return &wire.FileList{
		SDCardPresent: true,
		TotalBytes:    1 << 30,
		UsedBytes:     used,
		NumFiles:      len(d.files),
		Files:         append([]wire.FileEntry{}, d.files...),
	}
}

func (d *Device) snapshotLocked() []byte {
	d.frame++
	out := make([]byte, d.config.Pixels)
	for i := range out {
		out[i] = d.frame
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("devicesim: encode: %v", err))
	}
	return string(b)
}

func (d *Device) debugLog(msg string, args ...any) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, args...)
	}
}

// Received returns every text frame the device has seen, in order.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Count returns how many received frames start with prefix.
func (d *Device) Count(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.received {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// Connections returns the number of open client connections.
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// DropAll closes every client connection.
func (d *Device) DropAll() {
	d.mu.Lock()
	conns := make([]*transport.Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// SetSilent makes the device stop answering while keeping connections
// open.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent = silent
}

// SetRejectSets makes configuration writes fail.
func (d *Device) SetRejectSets(reject bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejectSets = reject
}

// Section returns a copy of a configuration section.
func (d *Device) Section(section wire.Section) tree.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()
	return tree.CloneTree(d.sections[section])
}

// DeviceTime returns the device clock.
func (d *Device) DeviceTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.Now().Add(d.offset)
}

// Files returns the file names on the simulated SD card.
func (d *Device) Files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fileListLocked().Names()
}

// Uploads returns the firmware images received so far.
func (d *Device) Uploads() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.uploads...)
}
