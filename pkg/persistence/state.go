package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ClientState is what the client remembers between runs.
type ClientState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// LastURL is the device the client connected to most recently.
	LastURL string `json:"last_url,omitempty"`

	// Devices contains every device the client has connected to.
	Devices []KnownDevice `json:"devices,omitempty"`
}

// KnownDevice describes a device the client has connected to.
type KnownDevice struct {
	// URL is the device's WebSocket endpoint.
	URL string `json:"url"`

	// Name is the device id from the system section.
	Name string `json:"name,omitempty"`

	// Board is the board name reported in the admin info.
	Board string `json:"board,omitempty"`

	// Version is the firmware version reported in the admin info.
	Version string `json:"version,omitempty"`

	// LastSeenAt is when the device was last connected.
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`
}

// Remember records d as the most recent device, replacing any entry
// with the same URL.
func (s *ClientState) Remember(d KnownDevice) {
	s.LastURL = d.URL
	for i := range s.Devices {
		if s.Devices[i].URL == d.URL {
			if d.Name == "" {
				d.Name = s.Devices[i].Name
			}
			if d.Board == "" {
				d.Board = s.Devices[i].Board
			}
			if d.Version == "" {
				d.Version = s.Devices[i].Version
			}
			s.Devices[i] = d
			return
		}
	}
	s.Devices = append(s.Devices, d)
	sort.Slice(s.Devices, func(i, j int) bool { return s.Devices[i].URL < s.Devices[j].URL })
}

// Lookup returns the device whose name or URL matches key.
func (s *ClientState) Lookup(key string) (KnownDevice, bool) {
	for _, d := range s.Devices {
		if d.URL == key || (d.Name != "" && d.Name == key) {
			return d, true
		}
	}
	return KnownDevice{}, false
}

// StateStore manages persistence of client state to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a new client state store.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file path.
func (s *StateStore) Path() string { return s.path }

// Save persists the client state to disk.
func (s *StateStore) Save(state *ClientState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the client state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (*ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ClientState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
