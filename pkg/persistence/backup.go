package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// ErrEmptyBackup is returned when a backup holds none of the known sections.
var ErrEmptyBackup = errors.New("backup contains no configuration sections")

// Keys used for each section in a backup document.
const (
	KeySystem = "system"
	KeyInput  = "input"
	KeyOutput = "output"
)

// BackupSections maps backup keys to wire sections, in restore order.
var BackupSections = []struct {
	Key     string
	Section wire.Section
}{
	{KeySystem, wire.SectionSystem},
	{KeyOutput, wire.SectionOutput},
	{KeyInput, wire.SectionInput},
}

// Backup is a device configuration snapshot.
type Backup struct {
	System tree.Tree `json:"system,omitempty"`
	Input  tree.Tree `json:"input,omitempty"`
	Output tree.Tree `json:"output,omitempty"`
}

// Section returns the tree stored for s, or nil.
func (b *Backup) Section(s wire.Section) tree.Tree {
	switch s {
	case wire.SectionSystem:
		return b.System
	case wire.SectionInput:
		return b.Input
	case wire.SectionOutput:
		return b.Output
	default:
		return nil
	}
}

// SetSection stores a copy of t for s. Unknown sections are ignored.
func (b *Backup) SetSection(s wire.Section, t tree.Tree) {
	if t != nil {
		t = tree.CloneTree(t)
	}
	switch s {
	case wire.SectionSystem:
		b.System = t
	case wire.SectionInput:
		b.Input = t
	case wire.SectionOutput:
		b.Output = t
	}
}

// Sections returns the sections present, in restore order.
func (b *Backup) Sections() []wire.Section {
	var out []wire.Section
	for _, bs := range BackupSections {
		if b.Section(bs.Section) != nil {
			out = append(out, bs.Section)
		}
	}
	return out
}

// Tree returns the backup as a single tree keyed by backup keys.
func (b *Backup) Tree() tree.Tree {
	t := tree.Tree{}
	for _, bs := range BackupSections {
		if sec := b.Section(bs.Section); sec != nil {
			t[bs.Key] = tree.CloneTree(sec)
		}
	}
	return t
}

// ParseBackup decodes a backup document. Comments and trailing commas
// are accepted.
func ParseBackup(data []byte) (*Backup, error) {
	var b Backup
	if err := json.Unmarshal(jsonc.ToJSON(data), &b); err != nil {
		return nil, fmt.Errorf("parsing backup: %w", err)
	}
	if len(b.Sections()) == 0 {
		return nil, ErrEmptyBackup
	}
	return &b, nil
}

// MarshalBackup encodes b as indented JSON.
func MarshalBackup(b *Backup) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// ReadBackup reads and parses a backup file.
func ReadBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	b, err := ParseBackup(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// WriteBackup writes b to path, creating the parent directory.
func WriteBackup(path string, b *Backup) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := MarshalBackup(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BackupFileName builds a file name from the device id in the system
// section and the flash chip id from the admin info, e.g.
// "Porch-Lights-d3a1f2.json". Missing parts are left out.
func BackupFileName(system, admin tree.Tree) string {
	var parts []string
	if id, ok := tree.Get(system, tree.ParsePath("device/id")); ok {
		if s, ok := id.(string); ok && s != "" {
			parts = append(parts, sanitize(s))
		}
	}
	if chip, ok := tree.Get(admin, tree.Key("flashchipid")); ok {
		if s := fmt.Sprint(chip); s != "" {
			parts = append(parts, sanitize(s))
		}
	}
	if len(parts) == 0 {
		parts = []string{"espixelstick"}
	}
	return strings.Join(parts, "-") + ".json"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', ',', '/', '\\', ':':
			return '-'
		}
		return r
	}, s)
}
