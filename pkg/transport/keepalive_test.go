package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
)

type fakeProber struct {
	ready  bool
	probes int
	err    error
}

func (p *fakeProber) Ready() bool { return p.ready }

func (p *fakeProber) SendProbe() error {
	p.probes++
	return p.err
}

func newTestKeepAlive() (*KeepAlive, *fakeProber, *clock.FakeClock, *[]string) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	probe := &fakeProber{ready: true}
	var reasons []string
	ka := NewKeepAlive(DefaultKeepAliveConfig(), clk, probe, func(reason string) {
		reasons = append(reasons, reason)
	})
	return ka, probe, clk, &reasons
}

func TestKeepAliveConfig(t *testing.T) {
	config := DefaultKeepAliveConfig()

	if config.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", config.PingInterval, DefaultPingInterval)
	}
	if config.PongTimeout != DefaultPongTimeout {
		t.Errorf("PongTimeout = %v, want %v", config.PongTimeout, DefaultPongTimeout)
	}
}

func TestKeepAliveSilenceTriggersOnce(t *testing.T) {
	ka, probe, clk, reasons := newTestKeepAlive()
	ka.Start()

	clk.Advance(DefaultPongTimeout - time.Millisecond)
	if len(*reasons) != 0 {
		t.Fatalf("declared dead early: %v", *reasons)
	}
	if probe.probes == 0 {
		t.Error("no probe sent while quiet")
	}

	clk.Advance(time.Millisecond)
	clk.Advance(time.Minute)

	if len(*reasons) != 1 {
		t.Fatalf("onDead called %d times, want 1", len(*reasons))
	}
	if ka.Stats().State != KeepAliveDead {
		t.Errorf("State = %v, want DEAD", ka.Stats().State)
	}
	if clk.PendingCount() != 0 {
		t.Errorf("timers left armed after death: %d", clk.PendingCount())
	}
}

func TestKeepAliveTrafficResetsCeiling(t *testing.T) {
	ka, _, clk, reasons := newTestKeepAlive()
	ka.Start()

	for i := 0; i < 10; i++ {
		clk.Advance(5 * time.Second)
		ka.Received()
	}

	if len(*reasons) != 0 {
		t.Fatalf("declared dead despite traffic: %v", *reasons)
	}
	if ka.Stats().State != KeepAliveHealthy {
		t.Errorf("State = %v, want HEALTHY", ka.Stats().State)
	}
}

func TestKeepAliveProbeCadence(t *testing.T) {
	ka, probe, clk, _ := newTestKeepAlive()
	ka.Start()

	clk.Advance(999 * time.Millisecond)
	if probe.probes != 0 {
		t.Fatalf("probe sent before interval")
	}
	clk.Advance(time.Millisecond)
	if probe.probes != 1 {
		t.Fatalf("probes = %d, want 1", probe.probes)
	}
	if !ka.Stats().PingPending {
		t.Error("PingPending not set after probe")
	}

	// A reply clears the pending flag and restarts the interval.
	clk.Advance(500 * time.Millisecond)
	ka.Received()
	if ka.Stats().PingPending {
		t.Error("PingPending still set after traffic")
	}
	clk.Advance(999 * time.Millisecond)
	if probe.probes != 1 {
		t.Errorf("probes = %d, want 1", probe.probes)
	}
	clk.Advance(time.Millisecond)
	if probe.probes != 2 {
		t.Errorf("probes = %d, want 2", probe.probes)
	}
}

func TestKeepAliveClosedConnection(t *testing.T) {
	ka, probe, clk, reasons := newTestKeepAlive()
	ka.Start()
	probe.ready = false

	clk.Advance(DefaultPingInterval)

	if len(*reasons) != 1 || (*reasons)[0] != "connection closed" {
		t.Fatalf("reasons = %v, want [connection closed]", *reasons)
	}
	if probe.probes != 0 {
		t.Errorf("probe sent on closed connection")
	}
}

func TestKeepAliveProbeErrorNotFatal(t *testing.T) {
	ka, probe, clk, reasons := newTestKeepAlive()
	probe.err = errors.New("write failed")
	ka.Start()

	clk.Advance(3 * time.Second)
	if len(*reasons) != 0 {
		t.Fatalf("probe error declared dead: %v", *reasons)
	}
}

func TestKeepAliveHidden(t *testing.T) {
	ka, probe, clk, reasons := newTestKeepAlive()
	ka.Start()
	ka.SetHidden(true)

	clk.Advance(time.Minute)
	if len(*reasons) != 0 || probe.probes != 0 {
		t.Fatalf("heartbeat ran while hidden: reasons=%v probes=%d", *reasons, probe.probes)
	}

	// Traffic while hidden does not arm timers.
	ka.Received()
	if clk.PendingCount() != 0 {
		t.Errorf("timers armed while hidden")
	}

	ka.SetHidden(false)
	clk.Advance(DefaultPongTimeout)
	if len(*reasons) != 1 {
		t.Errorf("onDead called %d times after resume, want 1", len(*reasons))
	}
}

func TestKeepAliveStop(t *testing.T) {
	ka, probe, clk, reasons := newTestKeepAlive()
	ka.Start()
	ka.Stop()

	clk.Advance(time.Minute)
	if len(*reasons) != 0 || probe.probes != 0 {
		t.Errorf("callbacks after Stop: reasons=%v probes=%d", *reasons, probe.probes)
	}
	if ka.Stats().State != KeepAliveIdle {
		t.Errorf("State = %v, want IDLE", ka.Stats().State)
	}

	// Start re-arms after a stop, as on reconnect.
	ka.Start()
	clk.Advance(DefaultPongTimeout)
	if len(*reasons) != 1 {
		t.Errorf("onDead called %d times after restart, want 1", len(*reasons))
	}
}
