package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MaxInstanceLen is the longest DNS-SD instance label.
const MaxInstanceLen = 63

// AdvertiseInfo describes the announcements a device makes.
type AdvertiseInfo struct {
	// Instance is the device host name.
	Instance string

	// Port is the web server port. Zero means DefaultHTTPPort.
	Port uint16

	// Model and Manufacturer fill the Model and Manuf TXT keys.
	Model        string
	Manufacturer string
}

// EncodeTXT returns the TXT strings for info, sorted by key.
func EncodeTXT(info AdvertiseInfo) []string {
	model := info.Model
	if model == "" {
		model = ModelESPixelStick
	}
	txt := []string{
		TXTKeyVersion + "=1",
		TXTKeyModel + "=" + model,
	}
	if info.Manufacturer != "" {
		txt = append(txt, TXTKeyManuf+"="+info.Manufacturer)
	}
	sort.Strings(txt)
	return txt
}

// MDNSAdvertiser announces a device on _http._tcp and _e131._udp the way
// the firmware does. It is used by the simulator.
type MDNSAdvertiser struct {
	iface  string
	logger *slog.Logger

	mu      sync.Mutex
	servers []*zeroconf.Server
}

// NewMDNSAdvertiser creates an advertiser. An empty iface announces on
// every multicast interface.
func NewMDNSAdvertiser(iface string, logger *slog.Logger) *MDNSAdvertiser {
	return &MDNSAdvertiser{iface: iface, logger: logger}
}

// Advertise replaces any running announcements with ones for info.
func (a *MDNSAdvertiser) Advertise(info AdvertiseInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownLocked()

	instance := info.Instance
	if len(instance) > MaxInstanceLen {
		instance = instance[:MaxInstanceLen]
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultHTTPPort
	}
	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}
	txt := EncodeTXT(info)

	// The E1.31 receiver listens on the sACN port, not the web port.
	for _, svc := range []struct {
		name string
		port int
	}{{ServiceTypeHTTP, port}, {ServiceTypeE131, 5568}} {
		server, err := zeroconf.Register(instance, svc.name, Domain, svc.port, txt, ifaces)
		if err != nil {
			a.shutdownLocked()
			return fmt.Errorf("register %s: %w", svc.name, err)
		}
		a.servers = append(a.servers, server)
		if a.logger != nil {
			a.logger.Debug("advertising", "instance", instance, "service", svc.name, "port", svc.port)
		}
	}
	return nil
}

// Stop withdraws all announcements.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownLocked()
}

func (a *MDNSAdvertiser) shutdownLocked() {
	for _, s := range a.servers {
		s.Shutdown()
	}
	a.servers = nil
}

func (a *MDNSAdvertiser) interfaces() ([]net.Interface, error) {
	if a.iface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", a.iface, err)
	}
	return []net.Interface{*iface}, nil
}
