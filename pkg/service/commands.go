package service

import (
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// Enqueue queues msg for the device. It returns ErrNotConnected when no
// connection is open and ErrDropped when sending is paused.
func (s *Session) Enqueue(msg wire.Outbound) error {
	var err error
	if derr := s.do(func() { err = s.enqueue(msg) }); derr != nil {
		return derr
	}
	return err
}

// RequestSection asks the device for a configuration section.
func (s *Session) RequestSection(section wire.Section) error {
	msg, err := wire.Get(section)
	if err != nil {
		return err
	}
	return s.Enqueue(msg)
}

// RequestStatus asks the device for its status.
func (s *Session) RequestStatus() error {
	return s.Enqueue(wire.Simple(wire.CodeStatus))
}

// RequestAdmin asks the device for firmware and board info.
func (s *Session) RequestAdmin() error {
	return s.Enqueue(wire.Simple(wire.CodeAdmin))
}

// RequestFiles asks the device for its file list.
func (s *Session) RequestFiles() error {
	return s.RequestSection(wire.SectionFiles)
}

// SyncTime pushes the wall clock to the device.
func (s *Session) SyncTime() error {
	var err error
	if derr := s.do(func() { err = s.syncTime() }); derr != nil {
		return derr
	}
	return err
}

// DeleteFiles removes files from the device's storage. The file list is
// requested again once the device has had time to finish.
func (s *Session) DeleteFiles(names ...string) error {
	msg, err := wire.DeleteFiles(names...)
	if err != nil {
		return err
	}
	if derr := s.do(func() {
		if err = s.enqueue(msg); err != nil {
			return
		}
		s.refreshTimer.Stop()
		s.refreshTimer = s.clock.AfterFunc(s.config.FileListRefresh, s.refreshFiles)
	}); derr != nil {
		return derr
	}
	return err
}

// Reboot restarts the device. Sending pauses once the command completes
// and resumes when the connection is reopened; replies that arrive in
// between do not lift the pause.
func (s *Session) Reboot() error {
	return s.Enqueue(wire.Simple(wire.CodeReboot))
}

// FactoryReset erases the device configuration and restarts it.
func (s *Session) FactoryReset() error {
	return s.Enqueue(wire.Simple(wire.CodeFactoryReset))
}

// Save writes each given section to the device as one batch. The result
// arrives as an EventSaveComplete.
func (s *Session) Save(sections map[wire.Section]tree.Tree) error {
	data := make(map[wire.Section]tree.Tree, len(sections))
	for sec, t := range sections {
		data[sec] = tree.CloneTree(t)
	}
	var err error
	if derr := s.do(func() { err = s.startSave(data) }); derr != nil {
		return derr
	}
	return err
}

// Restore merges a backup into the loaded sections and saves them.
// Only keys the device already has are taken from the backup.
func (s *Session) Restore(b *persistence.Backup) (RestoreResult, error) {
	var (
		result RestoreResult
		err    error
	)
	if derr := s.do(func() { result, err = s.restore(b) }); derr != nil {
		return result, derr
	}
	return result, err
}

// Backup returns a copy of the loaded configuration sections.
func (s *Session) Backup() (*persistence.Backup, error) {
	var (
		b   *persistence.Backup
		err error
	)
	if derr := s.do(func() { b, err = s.backup() }); derr != nil {
		return nil, derr
	}
	return b, err
}

// SetView switches the current view and issues its requests.
func (s *Session) SetView(v View) error {
	return s.do(func() {
		s.view = v
		s.diagVisible = v == ViewDiag
		if s.link == nil {
			return
		}
		s.requestView()
		s.statusTimer.Stop()
		s.statusTimer = nil
		if v.pollsStatus() && !s.hidden {
			s.pollStatus()
		}
		s.updateState()
	})
}

// SetHidden suspends the heartbeat and polling while the front end is
// not visible, and resumes them when it is.
func (s *Session) SetHidden(hidden bool) error {
	return s.do(func() {
		if s.hidden == hidden {
			return
		}
		s.hidden = hidden
		s.keepAlive.SetHidden(hidden)
		if hidden {
			s.statusTimer.Stop()
			s.statusTimer = nil
			return
		}
		if s.link == nil {
			return
		}
		s.syncTime()
		if s.view.pollsStatus() {
			s.pollStatus()
		}
		if s.streaming() {
			s.queue.Enqueue(wire.Stream())
		}
		s.updateState()
	})
}

// SetDiagVisible starts or stops the pixel stream.
func (s *Session) SetDiagVisible(visible bool) error {
	return s.do(func() {
		was := s.diagVisible
		s.diagVisible = visible
		if visible && !was && s.link != nil && !s.hidden {
			s.queue.Enqueue(wire.Stream())
			s.updateState()
		}
	})
}

// Section returns a copy of the last received configuration section.
func (s *Session) Section(section wire.Section) (tree.Tree, bool) {
	var (
		t  tree.Tree
		ok bool
	)
	s.do(func() {
		var live tree.Tree
		live, ok = s.sections[section]
		t = tree.CloneTree(live)
	})
	return t, ok
}

// Status returns a copy of the last status reply.
func (s *Session) Status() tree.Tree {
	var t tree.Tree
	s.do(func() { t = tree.CloneTree(s.status) })
	return t
}

// Admin returns a copy of the admin block of the last admin reply.
func (s *Session) Admin() tree.Tree {
	var t tree.Tree
	s.do(func() { t = tree.CloneTree(s.admin) })
	return t
}

// Files returns the last file list, or nil.
func (s *Session) Files() *wire.FileList {
	var l *wire.FileList
	s.do(func() { l = copyFileList(s.files) })
	return l
}

// DeviceName returns the device id from the system section.
func (s *Session) DeviceName() string {
	var name string
	s.do(func() { name = s.deviceName })
	return name
}

// Heartbeat returns the heartbeat statistics.
func (s *Session) Heartbeat() transport.KeepAliveStats {
	var st transport.KeepAliveStats
	s.do(func() { st = s.keepAlive.Stats() })
	return st
}

// QueueLen returns the number of commands waiting to be sent.
func (s *Session) QueueLen() int {
	var n int
	s.do(func() { n = s.queue.Len() })
	return n
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.do(func() {
		snap = Snapshot{
			State:        s.tracker.State(),
			ConnectionID: s.connID,
			View:         s.view,
			Hidden:       s.hidden,
			DiagVisible:  s.diagVisible,
			Queued:       s.queue.Len(),
			Busy:         s.queue.Busy(),
			Paused:       s.queue.Paused(),
			Queue:        s.queue.Stats(),
			Heartbeat:    s.keepAlive.Stats(),
			Reconnects:   s.reconnects,
		}
	})
	return snap
}

// enqueue runs on the loop.
func (s *Session) enqueue(msg wire.Outbound) error {
	ok := s.queue.Enqueue(msg)
	s.updateState()
	if !ok {
		if !(sessionLink{s: s}).Ready() {
			return ErrNotConnected
		}
		return ErrDropped
	}
	return nil
}

func (s *Session) syncTime() error {
	return s.enqueue(wire.SetTime(s.clock.Now()))
}

func (s *Session) request(section wire.Section) {
	msg, err := wire.Get(section)
	if err != nil {
		s.debugLog("bad section", "section", section, "error", err)
		return
	}
	s.queue.Enqueue(msg)
}

// requestView issues the current view's requests.
func (s *Session) requestView() {
	for _, sec := range s.view.requests() {
		s.request(sec)
	}
	if s.streaming() {
		s.queue.Enqueue(wire.Stream())
	}
}

func (s *Session) streaming() bool {
	return s.diagVisible && !s.hidden && s.link != nil
}

// pollStatus requests status and arms the next poll.
func (s *Session) pollStatus() {
	s.statusTimer = nil
	if s.link == nil || s.hidden || !s.view.pollsStatus() {
		return
	}
	if !s.statusPending {
		if s.queue.Enqueue(wire.Simple(wire.CodeStatus)) {
			s.statusPending = true
		}
		s.updateState()
	}
	s.statusTimer = s.clock.AfterFunc(s.config.StatusInterval, s.pollStatus)
}

func (s *Session) refreshFiles() {
	s.refreshTimer = nil
	if s.link == nil {
		return
	}
	s.request(wire.SectionFiles)
	s.updateState()
}
