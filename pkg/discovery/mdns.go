package discovery

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	nextID  int
	cancels map[int]context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{
		config:  config,
		cancels: make(map[int]context.CancelFunc),
	}, nil
}

// SetLogger sets the debug logger.
func (b *MDNSBrowser) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

// Browse reports ESPixelStick devices as they are found.
// Services are aggregated by instance name - addresses from multiple
// interfaces are combined into a single entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Device, error) {
	ctx, done, err := b.track(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan *Device)
	added, removed := b.start(ctx)

	go func() {
		defer close(out)
		defer done()
		agg := newAggregator()
		for {
			select {
			case r, ok := <-added:
				if !ok {
					return
				}
				d, report := agg.add(r)
				if !report {
					continue
				}
				b.debug("device found", "instance", d.Instance, "url", d.URL())
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			case r := <-removed:
				agg.remove(r)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// FindAll browses for the configured timeout and returns every device.
func (b *MDNSBrowser) FindAll(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]*Device)
	for d := range results {
		seen[d.Instance] = d
	}
	agg := &aggregator{devices: seen}
	return agg.ready(), nil
}

// Find returns the first device announced under instance.
func (b *MDNSBrowser) Find(ctx context.Context, instance string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for d := range results {
		if d.Instance == instance {
			return d, nil
		}
	}
	if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
		return nil, err
	}
	return nil, ErrNotFound
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

func (b *MDNSBrowser) track(ctx context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, nil, ErrBrowserClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	id := b.nextID
	b.nextID++
	b.cancels[id] = cancel
	return ctx, func() {
		cancel()
		b.mu.Lock()
		delete(b.cancels, id)
		b.mu.Unlock()
	}, nil
}

// start browses both services and merges them into one record stream.
// added is closed once both browses have ended.
func (b *MDNSBrowser) start(ctx context.Context) (<-chan record, <-chan record) {
	added := make(chan record)
	removed := make(chan record)
	opts := b.browserOptions()

	var wg sync.WaitGroup
	for _, service := range []string{ServiceTypeE131, ServiceTypeHTTP} {
		entries := make(chan *zeroconf.ServiceEntry)
		gone := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func() {
			defer wg.Done()
			forward(ctx, service, entries, gone, added, removed)
		}()
		go func() {
			if err := zeroconf.Browse(ctx, service, Domain, entries, gone, opts...); err != nil {
				b.debug("browse failed", "service", service, "error", err)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(added)
	}()
	return added, removed
}

func forward(ctx context.Context, service string, entries, gone <-chan *zeroconf.ServiceEntry, added, removed chan<- record) {
	for {
		var (
			entry *zeroconf.ServiceEntry
			ok    bool
			dst   chan<- record
		)
		select {
		case entry, ok = <-entries:
			if !ok {
				return
			}
			dst = added
		case entry, ok = <-gone:
			if !ok {
				gone = nil
				continue
			}
			dst = removed
		case <-ctx.Done():
			return
		}
		select {
		case dst <- entryToRecord(service, entry):
		case <-ctx.Done():
			return
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.debug("unknown interface", "name", b.config.Interface, "error", err)
		}
	}
	return opts
}

func entryToRecord(service string, entry *zeroconf.ServiceEntry) record {
	return record{
		service:   service,
		instance:  entry.Instance,
		host:      entry.HostName,
		port:      entry.Port,
		text:      entry.Text,
		addresses: addressStrings(entry.AddrIPv4, entry.AddrIPv6),
	}
}

func (b *MDNSBrowser) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
