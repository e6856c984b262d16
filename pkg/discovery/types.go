package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeE131 is the sACN receiver service.
	ServiceTypeE131 = "_e131._udp"

	// ServiceTypeHTTP is the web server service.
	ServiceTypeHTTP = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultHTTPPort is used when only the E1.31 service has been seen.
	DefaultHTTPPort = 80

	// WebSocketPath is the endpoint a session connects to.
	WebSocketPath = "/ws"

	// ModelESPixelStick is the Model TXT value devices announce.
	ModelESPixelStick = "ESPixelStick"
)

// TXT record keys.
const (
	TXTKeyModel   = "Model"
	TXTKeyManuf   = "Manuf"
	TXTKeyVersion = "TxtVers"
)

// BrowseTimeout is the default timeout for mDNS browsing.
const BrowseTimeout = 10 * time.Second

// Errors.
var (
	ErrNotFound      = errors.New("device not found")
	ErrBrowserClosed = errors.New("browser stopped")
)

// Device is a discovered ESPixelStick.
type Device struct {
	// Instance is the mDNS instance name, usually the configured hostname.
	Instance string

	// Host is the advertised host name (e.g. "esps-kitchen.local.").
	Host string

	// Port is the web server port.
	Port uint16

	// Addresses holds the IPv4 and IPv6 addresses seen so far.
	Addresses []string

	// Model is the Model TXT value.
	Model string

	// Manufacturer is the Manuf TXT value.
	Manufacturer string

	// HasHTTP is set once the _http._tcp announcement was seen.
	HasHTTP bool

	// IsESPixelStick is set once an announcement carried the model.
	IsESPixelStick bool
}

// URL returns the device's WebSocket endpoint. IPv4 addresses are
// preferred over the host name, which needs a working mDNS resolver.
func (d *Device) URL() string {
	port := d.Port
	if port == 0 {
		port = DefaultHTTPPort
	}
	return WebSocketURL(d.address(), port)
}

func (d *Device) address() string {
	for _, addr := range d.Addresses {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	if len(d.Addresses) > 0 {
		return d.Addresses[0]
	}
	return strings.TrimSuffix(d.Host, ".")
}

// String returns a one-line description.
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s) %s", d.Instance, d.address(), d.URL())
}

// WebSocketURL builds ws://host:port/ws. Port 80 is omitted.
func WebSocketURL(host string, port uint16) string {
	if port == 0 || port == DefaultHTTPPort {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return "ws://" + host + WebSocketPath
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(int(port))) + WebSocketPath
}

// ParseTXT decodes key=value TXT strings. Keys without a value map to "".
func ParseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		key, value, _ := strings.Cut(r, "=")
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
