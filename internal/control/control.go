// Package control turns the session's asynchronous API into blocking
// calls for the command-line tools. Each call sends its commands and
// waits for the events that answer them.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/espixelstick/esps-go/pkg/connection"
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/service"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/webapi"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// DefaultTimeout bounds a single blocking call.
const DefaultTimeout = 10 * time.Second

const idlePoll = 20 * time.Millisecond

// Errors.
var (
	ErrSaveFailed = errors.New("device rejected the configuration")
	ErrNoWebAPI   = errors.New("no HTTP client configured")
	ErrBadValue   = errors.New("path not found in section")
)

// Controller wraps one session.
type Controller struct {
	session *service.Session
	api     *webapi.Client
	timeout time.Duration

	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

type waiter struct {
	match func(service.Event) bool
	ch    chan service.Event
}

// New creates a controller. api may be nil when the HTTP side channel is
// not needed. A zero timeout means DefaultTimeout.
func New(session *service.Session, api *webapi.Client, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Controller{
		session: session,
		api:     api,
		timeout: timeout,
		waiters: make(map[*waiter]struct{}),
	}
	session.OnEvent(c.handleEvent)
	return c
}

// Session returns the wrapped session.
func (c *Controller) Session() *service.Session { return c.session }

func (c *Controller) handleEvent(event service.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.waiters {
		if w.match(event) {
			w.ch <- event
			delete(c.waiters, w)
		}
	}
}

// await registers match, runs start and waits for the first matching
// event. Registering first means an event caused by start is never missed.
func (c *Controller) await(ctx context.Context, match func(service.Event) bool, start func() error) (service.Event, error) {
	w := &waiter{match: match, ch: make(chan service.Event, 1)}
	c.mu.Lock()
	c.waiters[w] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, w)
		c.mu.Unlock()
	}()

	if start != nil {
		if err := start(); err != nil {
			return service.Event{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	select {
	case e := <-w.ch:
		return e, nil
	case <-ctx.Done():
		return service.Event{}, ctx.Err()
	}
}

// WaitConnected blocks until the session has an open connection.
func (c *Controller) WaitConnected(ctx context.Context) error {
	isOpen := func(s connection.State) bool {
		return s == connection.StateOpen || s == connection.StateAwaitingReply
	}
	_, err := c.await(ctx, func(e service.Event) bool {
		return e.Type == service.EventConnected ||
			(e.Type == service.EventStateChanged && isOpen(e.State))
	}, func() error {
		if isOpen(c.session.State()) {
			return errAlready
		}
		return nil
	})
	if errors.Is(err, errAlready) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.session.URL(), err)
	}
	return nil
}

var errAlready = errors.New("already satisfied")

// Status requests and returns the device status.
func (c *Controller) Status(ctx context.Context) (tree.Tree, error) {
	e, err := c.await(ctx, ofType(service.EventStatus), c.session.RequestStatus)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return e.Data, nil
}

// Admin requests and returns the firmware info.
func (c *Controller) Admin(ctx context.Context) (tree.Tree, error) {
	e, err := c.await(ctx, ofType(service.EventAdmin), c.session.RequestAdmin)
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	return e.Data, nil
}

// Section requests and returns one configuration section.
func (c *Controller) Section(ctx context.Context, section wire.Section) (tree.Tree, error) {
	if section == wire.SectionFiles {
		return nil, fmt.Errorf("%w: use Files", wire.ErrUnknownSection)
	}
	e, err := c.await(ctx, func(e service.Event) bool {
		return e.Type == service.EventSection && e.Section == section
	}, func() error { return c.session.RequestSection(section) })
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", section, err)
	}
	return e.Data, nil
}

// LoadConfig fetches every configuration section.
func (c *Controller) LoadConfig(ctx context.Context) (map[wire.Section]tree.Tree, error) {
	out := make(map[wire.Section]tree.Tree, len(wire.ConfigSections))
	for _, sec := range wire.ConfigSections {
		t, err := c.Section(ctx, sec)
		if err != nil {
			return nil, err
		}
		out[sec] = t
	}
	return out, nil
}

// Save writes sections and waits for the device to confirm them.
func (c *Controller) Save(ctx context.Context, sections map[wire.Section]tree.Tree) error {
	e, err := c.await(ctx, ofType(service.EventSaveComplete), func() error {
		return c.session.Save(sections)
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if !e.Success {
		if e.Reason != "" {
			return fmt.Errorf("%w: %s", ErrSaveFailed, e.Reason)
		}
		return ErrSaveFailed
	}
	return nil
}

// Set changes one value of a section and saves the section. The key must
// already exist on the device.
func (c *Controller) Set(ctx context.Context, section wire.Section, path tree.Path, value any) error {
	t, err := c.Section(ctx, section)
	if err != nil {
		return err
	}
	if _, ok := tree.Get(t, path); !ok {
		return fmt.Errorf("%w: %s/%s", ErrBadValue, section, path)
	}
	if !tree.Set(t, path, value) {
		return fmt.Errorf("%w: %s/%s", ErrBadValue, section, path)
	}
	return c.Save(ctx, map[wire.Section]tree.Tree{section: t})
}

// Backup loads the configuration and returns it with a suggested file
// name.
func (c *Controller) Backup(ctx context.Context) (*persistence.Backup, string, error) {
	if _, err := c.LoadConfig(ctx); err != nil {
		return nil, "", err
	}
	admin := c.session.Admin()
	if len(admin) == 0 {
		var err error
		if admin, err = c.Admin(ctx); err != nil {
			return nil, "", err
		}
	}
	b, err := c.session.Backup()
	if err != nil {
		return nil, "", err
	}
	return b, persistence.BackupFileName(b.System, admin), nil
}

// Restore loads the configuration, merges b into it and saves it.
func (c *Controller) Restore(ctx context.Context, b *persistence.Backup) (service.RestoreResult, error) {
	if _, err := c.LoadConfig(ctx); err != nil {
		return service.RestoreResult{}, err
	}
	var result service.RestoreResult
	e, err := c.await(ctx, ofType(service.EventSaveComplete), func() error {
		var err error
		result, err = c.session.Restore(b)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("restore: %w", err)
	}
	if !e.Success {
		return result, ErrSaveFailed
	}
	return result, nil
}

// DeleteFiles removes files and waits until the command was answered.
func (c *Controller) DeleteFiles(ctx context.Context, names ...string) error {
	if err := c.session.DeleteFiles(names...); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return c.WaitIdle(ctx)
}

// Reboot restarts the device.
func (c *Controller) Reboot(ctx context.Context) error {
	if err := c.session.Reboot(); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return c.WaitIdle(ctx)
}

// FactoryReset erases the device configuration and restarts it.
func (c *Controller) FactoryReset(ctx context.Context) error {
	if err := c.session.FactoryReset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return c.WaitIdle(ctx)
}

// WaitIdle blocks until nothing is queued or in flight.
func (c *Controller) WaitIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		snap := c.session.Snapshot()
		if snap.Queued == 0 && !snap.Busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait idle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Files fetches the storage listing over HTTP.
func (c *Controller) Files(ctx context.Context) (*wire.FileList, error) {
	if c.api == nil {
		return nil, ErrNoWebAPI
	}
	return c.api.Files(ctx)
}

// Upload sends a firmware image over HTTP.
func (c *Controller) Upload(ctx context.Context, path string, progress webapi.Progress) error {
	if c.api == nil {
		return ErrNoWebAPI
	}
	return c.api.UploadFirmwareFile(ctx, path, progress)
}

// KnownDevice describes the connected device for the state file.
func (c *Controller) KnownDevice(now time.Time) persistence.KnownDevice {
	d := persistence.KnownDevice{
		URL:        c.session.URL(),
		Name:       c.session.DeviceName(),
		LastSeenAt: now,
	}
	if admin := c.session.Admin(); admin != nil {
		d.Version, _ = admin["version"].(string)
		d.Board, _ = admin["BoardName"].(string)
	}
	return d
}

func ofType(t service.EventType) func(service.Event) bool {
	return func(e service.Event) bool { return e.Type == t }
}
