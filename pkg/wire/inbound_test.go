package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleReplies(t *testing.T) {
	in := DecodeText(`XJ{"status":{"system":{"freeheap":12345,"uptime":"60000","time":1700000000,"SDinstalled":true}}}`)
	status, ok := in.(*StatusReply)
	require.True(t, ok, "got %T", in)

	heap, ok := status.FreeHeap()
	assert.True(t, ok)
	assert.Equal(t, int64(12345), heap)

	up, ok := status.Uptime()
	assert.True(t, ok)
	assert.Equal(t, time.Minute, up)

	ts, ok := status.DeviceTime()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), ts.Unix())
	assert.True(t, status.SDInstalled())

	in = DecodeText(`XA{"admin":{"version":"4.0","BoardName":"esp32"}}`)
	admin, ok := in.(*AdminReply)
	require.True(t, ok, "got %T", in)
	assert.Equal(t, "4.0", admin.Version())
	assert.Equal(t, "esp32", admin.Board())

	assert.IsType(t, &PingReply{}, DecodeText("XP"))
	assert.IsType(t, &PingReply{}, DecodeText(`XP{"pong":true}`))
}

func TestDecodeLegacyStatus(t *testing.T) {
	in := DecodeText(`XJ{"system":{"freeheap":"100"}}`)
	status, ok := in.(*StatusReply)
	require.True(t, ok)
	heap, ok := status.FreeHeap()
	assert.True(t, ok)
	assert.Equal(t, int64(100), heap)

	_, ok = status.DeviceTime()
	assert.False(t, ok)
}

func TestDecodeConfigReplies(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		verb    Verb
		section Section
	}{
		{"get system", `{"get":{"system":{"device":{"id":"x"}}}}`, VerbGet, SectionSystem},
		{"set output", `{"set":{"output_config":{"channels":{}}}}`, VerbSet, SectionOutput},
		{"bare input", `{"input_config":{"channels":{}}}`, VerbNone, SectionInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := DecodeText(tt.text)
			cfg, ok := in.(*ConfigReply)
			require.True(t, ok, "got %T", in)
			assert.Equal(t, tt.verb, cfg.Verb)
			assert.Equal(t, tt.section, cfg.Section)
			assert.NotNil(t, cfg.Data)
			assert.Equal(t, KindConfig, cfg.Kind())
		})
	}
}

func TestDecodeFileList(t *testing.T) {
	in := DecodeText(`{"get":{"files":[{"name":"a.fseq","date":1700000000,"length":2048}],"SdCardPresent":true,"totalBytes":4096,"usedBytes":2048}}`)
	fl, ok := in.(*FileList)
	require.True(t, ok, "got %T", in)

	assert.True(t, fl.SDCardPresent)
	assert.Equal(t, int64(4096), fl.TotalBytes)
	assert.Equal(t, 1, fl.NumFiles)
	assert.Equal(t, []string{"a.fseq"}, fl.Names())
	assert.Equal(t, int64(1700000000), fl.Files[0].ModTime().Unix())
}

func TestDecodeAcks(t *testing.T) {
	ack, ok := DecodeText(`{"cmd":"OK"}`).(*Ack)
	require.True(t, ok)
	assert.True(t, ack.OK)

	ack, ok = DecodeText(`{"cmd":"Error: invalid value"}`).(*Ack)
	require.True(t, ok)
	assert.False(t, ack.OK)
	assert.Equal(t, "Error: invalid value", ack.Detail)

	ack, ok = DecodeText(`{"cmd":{"error":1}}`).(*Ack)
	require.True(t, ok)
	assert.False(t, ack.OK)

	ack, ok = DecodeText(`{"OK":true}`).(*Ack)
	require.True(t, ok)
	assert.True(t, ack.OK)
}

func TestDecodeUnrecognized(t *testing.T) {
	for _, text := range []string{
		"",
		"hello",
		"XZ",
		"XJnot json",
		`[1,2,3]`,
		`null`,
		`{"unknown":1}`,
		`{"get":{"mystery":{}}}`,
	} {
		in := DecodeText(text)
		assert.IsType(t, &Unrecognized{}, in, "text %q", text)
		assert.Equal(t, KindUnrecognized, in.Kind())
	}
}

func TestDecodeBinary(t *testing.T) {
	src := []byte{0xff, 0x00, 0x10}
	in := Decode(src, true)
	frame, ok := in.(*StreamFrame)
	require.True(t, ok)
	src[0] = 0
	assert.Equal(t, []byte{0xff, 0x00, 0x10}, frame.Pixels)

	// Binary frames are never parsed as text.
	assert.IsType(t, &StreamFrame{}, Decode([]byte("XP"), true))
}
