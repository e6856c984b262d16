package service

import (
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// saveBatch tracks the set commands of one Save call. The batch
// succeeds only if every command was sent and confirmed.
type saveBatch struct {
	sections []wire.Section
	pending  map[string]wire.Section
	ok       bool
}

// startSave enqueues one set command per section. Must run on the loop.
func (s *Session) startSave(data map[wire.Section]tree.Tree) error {
	if s.save != nil {
		return ErrSaveInProgress
	}
	if len(data) == 0 {
		return ErrNothingToSave
	}
	if s.link == nil {
		return ErrNotConnected
	}

	var msgs []wire.Outbound
	batch := &saveBatch{pending: make(map[string]wire.Section), ok: true}
	for _, sec := range wire.ConfigSections {
		t, ok := data[sec]
		if !ok {
			continue
		}
		msg, err := wire.Set(sec, t)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		batch.sections = append(batch.sections, sec)
	}
	if len(msgs) == 0 {
		return ErrNothingToSave
	}

	s.save = batch
	for i, msg := range msgs {
		batch.pending[msg.String()] = batch.sections[i]
		if !s.queue.Enqueue(msg) {
			delete(batch.pending, msg.String())
			batch.ok = false
		}
	}
	s.debugLog("save started", "sections", batch.sections)
	s.finishSaveIfDone()
	s.updateState()
	return nil
}

// commandCompleted is called by the queue when the in-flight command is
// released. The reply that released it, if any, is in lastReply.
func (s *Session) commandCompleted(msg wire.Outbound, timedOut bool) {
	switch msg.String() {
	case wire.Simple(wire.CodeStatus).String():
		s.statusPending = false
	case wire.Simple(wire.CodeReboot).String(), wire.Simple(wire.CodeFactoryReset).String():
		s.debugLog("device restarting, sending paused", "command", msg.String())
		s.restarting = true
		s.queue.Pause()
	}

	if s.save == nil {
		return
	}
	sec, ok := s.save.pending[msg.String()]
	if !ok {
		return
	}
	delete(s.save.pending, msg.String())
	if timedOut || !replyConfirmsWrite(s.lastReply) {
		s.debugLog("save command failed", "section", sec, "timed_out", timedOut)
		s.save.ok = false
	}
	s.finishSaveIfDone()
}

func (s *Session) finishSaveIfDone() {
	if s.save == nil || len(s.save.pending) > 0 {
		return
	}
	batch := s.save
	s.save = nil
	s.debugLog("save complete", "success", batch.ok)
	s.emit(Event{
		Type:         EventSaveComplete,
		ConnectionID: s.connID,
		Success:      batch.ok,
		Sections:     batch.sections,
	})
}

// failSave reports an unfinished batch as failed.
func (s *Session) failSave(reason string) {
	if s.save == nil {
		return
	}
	batch := s.save
	s.save = nil
	s.debugLog("save aborted", "reason", reason)
	s.emit(Event{
		Type:         EventSaveComplete,
		ConnectionID: s.connID,
		Success:      false,
		Sections:     batch.sections,
		Reason:       reason,
	})
}

// restore merges each backup section into a copy of the live section
// and saves the results as one batch.
func (s *Session) restore(b *persistence.Backup) (RestoreResult, error) {
	result := RestoreResult{Written: make(map[wire.Section]int)}
	merged := make(map[wire.Section]tree.Tree)

	for _, bs := range persistence.BackupSections {
		src := b.Section(bs.Section)
		if src == nil {
			continue
		}
		live, ok := s.sections[bs.Section]
		if !ok {
			result.Skipped = append(result.Skipped, bs.Section)
			continue
		}
		target := tree.CloneTree(live)
		result.Written[bs.Section] = tree.MergeSection(string(bs.Section), src, target)
		merged[bs.Section] = target
	}

	if len(merged) == 0 {
		return result, ErrNotLoaded
	}
	return result, s.startSave(merged)
}

func (s *Session) backup() (*persistence.Backup, error) {
	b := &persistence.Backup{}
	for _, sec := range wire.ConfigSections {
		if live, ok := s.sections[sec]; ok {
			b.SetSection(sec, live)
		}
	}
	if len(b.Sections()) == 0 {
		return nil, ErrNotLoaded
	}
	return b, nil
}
