package control

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espixelstick/esps-go/internal/devicesim"
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/service"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/webapi"
	"github.com/espixelstick/esps-go/pkg/wire"
)

func setup(t *testing.T) (*Controller, *devicesim.Device) {
	t.Helper()
	dev := devicesim.New(devicesim.Config{DeviceID: "bench"})
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)

	cfg := service.DefaultSessionConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg.View = service.ViewAdmin
	s, err := service.NewSession(cfg)
	require.NoError(t, err)

	api, err := webapi.NewClient(webapi.ClientConfig{BaseURL: cfg.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	c := New(s, api, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		s.Close()
	})
	require.NoError(t, c.WaitConnected(context.Background()))
	return c, dev
}

func TestStatusAndAdmin(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	status, err := c.Status(ctx)
	require.NoError(t, err)
	_, ok := tree.Get(status, tree.ParsePath("status/system/freeheap"))
	assert.True(t, ok)

	admin, err := c.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4.0.0-sim", admin["version"])

	// Already connected.
	require.NoError(t, c.WaitConnected(ctx))
}

func TestSetSavesSection(t *testing.T) {
	c, dev := setup(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, wire.SectionSystem, tree.ParsePath("network/ssid"), "stage"))
	got, _ := tree.Get(dev.Section(wire.SectionSystem), tree.ParsePath("network/ssid"))
	assert.Equal(t, "stage", got)

	err := c.Set(ctx, wire.SectionSystem, tree.ParsePath("network/nope"), "x")
	assert.ErrorIs(t, err, ErrBadValue)

	dev.SetRejectSets(true)
	err = c.Set(ctx, wire.SectionSystem, tree.ParsePath("network/ssid"), "other")
	assert.ErrorIs(t, err, ErrSaveFailed)
}

func TestBackupRestore(t *testing.T) {
	c, dev := setup(t)
	ctx := context.Background()

	b, name, err := c.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bench-c0ffee.json", name)
	require.NotNil(t, b.System)

	// Change a value in the backup and add a key the device does not know.
	require.True(t, tree.Set(b.System, tree.ParsePath("network/ssid"), "restored"))
	b.System["extra"] = "ignored"

	data, err := persistence.MarshalBackup(b)
	require.NoError(t, err)
	parsed, err := persistence.ParseBackup(data)
	require.NoError(t, err)

	result, err := c.Restore(ctx, parsed)
	require.NoError(t, err)
	assert.Positive(t, result.Written[wire.SectionSystem])

	sys := dev.Section(wire.SectionSystem)
	ssid, _ := tree.Get(sys, tree.ParsePath("network/ssid"))
	assert.Equal(t, "restored", ssid)
	_, found := sys["extra"]
	assert.False(t, found)
}

func TestFilesAndDelete(t *testing.T) {
	c, dev := setup(t)
	ctx := context.Background()

	list, err := c.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"show.fseq"}, list.Names())

	require.NoError(t, c.DeleteFiles(ctx, "show.fseq"))
	assert.Empty(t, dev.Files())
}

func TestRebootReconnects(t *testing.T) {
	c, dev := setup(t)
	ctx := context.Background()

	require.NoError(t, c.Reboot(ctx))
	assert.Eventually(t, func() bool {
		return dev.Count("X6") == 1 && dev.Connections() == 1 && dev.Count("XA") >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestKnownDevice(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	_, err := c.Section(ctx, wire.SectionSystem)
	require.NoError(t, err)
	_, err = c.Admin(ctx)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := c.KnownDevice(now)
	assert.Equal(t, "bench", d.Name)
	assert.Equal(t, "4.0.0-sim", d.Version)
	assert.Equal(t, "ESP32 Sim", d.Board)
	assert.Equal(t, now, d.LastSeenAt)
}

func TestNoWebAPI(t *testing.T) {
	s, err := service.NewSession(service.SessionConfig{URL: "ws://127.0.0.1:1/ws"})
	require.NoError(t, err)
	c := New(s, nil, 0)
	assert.Equal(t, DefaultTimeout, c.timeout)

	_, err = c.Files(context.Background())
	assert.ErrorIs(t, err, ErrNoWebAPI)
	assert.ErrorIs(t, c.Upload(context.Background(), "fw.bin", nil), ErrNoWebAPI)
}
