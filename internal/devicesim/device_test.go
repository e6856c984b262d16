package devicesim

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/wire"
	"github.com/espixelstick/esps-go/pkg/webapi"
)

type client struct {
	conn   *transport.Conn
	frames chan transport.Frame
	closed chan struct{}
}

func startDevice(t *testing.T, cfg Config) (*Device, *httptest.Server) {
	t.Helper()
	dev := New(cfg)
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return dev, srv
}

func dial(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	c := &client{frames: make(chan transport.Frame, 16), closed: make(chan struct{})}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := transport.Dial(context.Background(), url, transport.ConnectionConfig{},
		transport.HandlerFuncs{
			Frame: func(f transport.Frame) { c.frames <- f },
			Close: func(error) { close(c.closed) },
		})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	c.conn = conn
	return c
}

func (c *client) roundTrip(t *testing.T, text string) wire.Inbound {
	t.Helper()
	require.NoError(t, c.conn.SendText(text))
	select {
	case f := <-c.frames:
		return wire.Decode(f.Data, f.Binary)
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply to %q", text)
		return nil
	}
}

func TestSimpleCommands(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_, srv := startDevice(t, Config{Now: func() time.Time { return now }, ClockOffset: -time.Hour})
	c := dial(t, srv)

	_, ok := c.roundTrip(t, "XP").(*wire.PingReply)
	assert.True(t, ok)

	status, ok := c.roundTrip(t, "XJ").(*wire.StatusReply)
	require.True(t, ok)
	devTime, ok := status.DeviceTime()
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Hour).Unix(), devTime.Unix())
	heap, ok := status.FreeHeap()
	assert.True(t, ok)
	assert.Equal(t, int64(120000), heap)

	admin, ok := c.roundTrip(t, "XA").(*wire.AdminReply)
	require.True(t, ok)
	assert.Equal(t, "4.0.0-sim", admin.Version())
	assert.Equal(t, "ESP32 Sim", admin.Board())

	frame, ok := c.roundTrip(t, "V1").(*wire.StreamFrame)
	require.True(t, ok)
	assert.Len(t, frame.Pixels, 24)
}

func TestConfigGetSet(t *testing.T) {
	dev, srv := startDevice(t, Config{DeviceID: "porch"})
	c := dial(t, srv)

	get, _ := wire.Get(wire.SectionSystem)
	reply, ok := c.roundTrip(t, get.String()).(*wire.ConfigReply)
	require.True(t, ok)
	assert.Equal(t, wire.VerbGet, reply.Verb)
	assert.Equal(t, wire.SectionSystem, reply.Section)

	data := reply.Data
	data["device"].(map[string]any)["id"] = "garage"
	set, err := wire.Set(wire.SectionSystem, data)
	require.NoError(t, err)
	echo, ok := c.roundTrip(t, set.String()).(*wire.ConfigReply)
	require.True(t, ok)
	assert.Equal(t, wire.VerbSet, echo.Verb)
	assert.Equal(t, "garage", dev.Section(wire.SectionSystem)["device"].(map[string]any)["id"])

	dev.SetRejectSets(true)
	ack, ok := c.roundTrip(t, set.String()).(*wire.Ack)
	require.True(t, ok)
	assert.False(t, ack.OK)
}

func TestTimeAndFiles(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	dev, srv := startDevice(t, Config{Now: func() time.Time { return now }, ClockOffset: time.Hour})
	c := dial(t, srv)

	ack, ok := c.roundTrip(t, wire.SetTime(now).String()).(*wire.Ack)
	require.True(t, ok)
	assert.True(t, ack.OK)
	assert.True(t, dev.DeviceTime().Equal(now))

	get, _ := wire.Get(wire.SectionFiles)
	list, ok := c.roundTrip(t, get.String()).(*wire.FileList)
	require.True(t, ok)
	assert.Equal(t, []string{"show.fseq"}, list.Names())

	del, _ := wire.DeleteFiles("show.fseq")
	_, ok = c.roundTrip(t, del.String()).(*wire.Ack)
	assert.True(t, ok)
	assert.Empty(t, dev.Files())
	assert.Equal(t, 1, dev.Count(`{"cmd":{"delete"`))
}

func TestRebootDropsConnection(t *testing.T) {
	dev, srv := startDevice(t, Config{})
	c := dial(t, srv)
	require.Eventually(t, func() bool { return dev.Connections() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.conn.SendText("X6"))
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed after reboot")
	}
	assert.Eventually(t, func() bool { return dev.Connections() == 0 }, time.Second, time.Millisecond)
}

func TestSilent(t *testing.T) {
	dev, srv := startDevice(t, Config{})
	c := dial(t, srv)
	dev.SetSilent(true)

	require.NoError(t, c.conn.SendText("XP"))
	select {
	case f := <-c.frames:
		t.Fatalf("silent device answered %q", f.Data)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Eventually(t, func() bool { return dev.Count("XP") == 1 }, time.Second, time.Millisecond)
}

func TestHTTPSideChannel(t *testing.T) {
	dev, srv := startDevice(t, Config{})
	api, err := webapi.NewClient(webapi.ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	ctx := context.Background()

	list, err := api.Files(ctx)
	require.NoError(t, err)
	assert.True(t, list.SDCardPresent)
	assert.Equal(t, 1, list.NumFiles)

	require.NoError(t, api.DeleteFile(ctx, "show.fseq"))
	assert.Empty(t, dev.Files())
	err = api.DeleteFile(ctx, "show.fseq")
	var se *webapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)

	image := []byte("firmware image")
	require.NoError(t, api.UploadFirmware(ctx, "esps.bin", strings.NewReader(string(image)), int64(len(image)), nil))
	require.Len(t, dev.Uploads(), 1)
	assert.Equal(t, image, dev.Uploads()[0])
}
