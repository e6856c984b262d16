package wire

import (
	"strconv"
	"time"

	"github.com/espixelstick/esps-go/pkg/tree"
)

// System returns the system block of a status reply. Newer firmware
// nests it under "status".
func (r *StatusReply) System() tree.Tree {
	for _, p := range []tree.Path{tree.ParsePath("status/system"), tree.Key("system")} {
		if v, ok := tree.Get(r.Data, p); ok {
			if t, ok := v.(map[string]any); ok {
				return t
			}
		}
	}
	return nil
}

// FreeHeap returns the device's free heap in bytes.
func (r *StatusReply) FreeHeap() (int64, bool) {
	return number(r.System(), "freeheap")
}

// Uptime returns the time since the device booted.
func (r *StatusReply) Uptime() (time.Duration, bool) {
	ms, ok := number(r.System(), "uptime")
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// DeviceTime returns the device's real-time clock, if reported.
func (r *StatusReply) DeviceTime() (time.Time, bool) {
	sec, ok := number(r.System(), "time")
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// SDInstalled reports whether the device has an SD card.
func (r *StatusReply) SDInstalled() bool {
	v, _ := r.System()["SDinstalled"].(bool)
	return v
}

// Admin returns the admin block of an admin reply.
func (r *AdminReply) Admin() tree.Tree {
	if t, ok := r.Data["admin"].(map[string]any); ok {
		return t
	}
	return r.Data
}

// Version returns the firmware version string.
func (r *AdminReply) Version() string {
	s, _ := r.Admin()["version"].(string)
	return s
}

// Board returns the board name.
func (r *AdminReply) Board() string {
	s, _ := r.Admin()["BoardName"].(string)
	return s
}

// number reads an integer field that the device may send either as a
// JSON number or as a decimal string.
func number(t tree.Tree, key string) (int64, bool) {
	switch v := t[key].(type) {
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
