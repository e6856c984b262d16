package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS device browsing.
type Browser interface {
	// Browse reports ESPixelStick devices as they are found. A device is
	// sent again when its web port becomes known. The channel is closed
	// when ctx is done or the browser is stopped.
	Browse(ctx context.Context) (<-chan *Device, error)

	// FindAll browses until ctx is done or BrowseTimeout elapses and
	// returns every device found, sorted by instance name.
	FindAll(ctx context.Context) ([]*Device, error)

	// Find returns the device with the given instance name.
	Find(ctx context.Context, instance string) (*Device, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindAll and Find.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}
