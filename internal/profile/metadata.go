package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Metadata is the singleton record tracking the active profile, dock links
// and the undocked fallback. ActiveProfile is an advisory cache: the correct
// profile can always be re-derived from current hardware.
type Metadata struct {
	ActiveProfile   string            `json:"active_profile,omitempty"`
	LastModified    string            `json:"last_modified,omitempty"`
	DockProfiles    map[string]string `json:"dock_profiles,omitempty"` // dock UUID -> profile name
	UndockedProfile string            `json:"undocked_profile,omitempty"`
}

// SetActive records the active profile and touches the modification time.
func (m *Metadata) SetActive(name string) {
	m.ActiveProfile = name
	m.touch()
}

// LinkDock associates a dock UUID with a profile name. A dock maps to at
// most one profile; relinking overwrites the previous association.
func (m *Metadata) LinkDock(uuid, name string) {
	if m.DockProfiles == nil {
		m.DockProfiles = make(map[string]string)
	}
	m.DockProfiles[uuid] = name
	m.touch()
}

// UnlinkDock removes the association for a dock UUID.
func (m *Metadata) UnlinkDock(uuid string) {
	delete(m.DockProfiles, uuid)
	m.touch()
}

// DockProfile returns the profile linked to the dock UUID, if any.
func (m *Metadata) DockProfile(uuid string) (string, bool) {
	name, ok := m.DockProfiles[uuid]
	return name, ok
}

// ProfileDock performs the reverse lookup: which dock is linked to a profile.
func (m *Metadata) ProfileDock(name string) (string, bool) {
	for uuid, p := range m.DockProfiles {
		if p == name {
			return uuid, true
		}
	}
	return "", false
}

// SetUndocked records the fallback profile applied when no dock is attached.
func (m *Metadata) SetUndocked(name string) {
	m.UndockedProfile = name
	m.touch()
}

func (m *Metadata) touch() {
	m.LastModified = strconv.FormatInt(time.Now().Unix(), 10)
}

// MetadataStore serialises metadata access under a single in-process lock.
// Every mutation is persisted immediately; there is no write buffering.
type MetadataStore struct {
	mu   sync.Mutex
	path string
}

// NewMetadataStore creates a store persisting to the given file path.
func NewMetadataStore(path string) *MetadataStore {
	return &MetadataStore{path: path}
}

// Get returns the current metadata, or a zero record when the file is absent.
func (s *MetadataStore) Get() (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update applies fn to the current metadata under the lock and persists the
// result atomically. When fn returns an error nothing is written.
func (s *MetadataStore) Update(fn func(*Metadata) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(&meta); err != nil {
		return err
	}

	return s.save(meta)
}

func (s *MetadataStore) load() (Metadata, error) {
	var meta Metadata

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}
		return meta, fmt.Errorf("profile: read metadata: %w", err)
	}

	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("profile: parse metadata: %w", err)
	}
	return meta, nil
}

func (s *MetadataStore) save(meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: serialize metadata: %w", err)
	}
	return atomicWrite(s.path, data)
}
