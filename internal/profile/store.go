package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyprpier/hyprpier/internal/config"
)

// NotFoundError indicates a requested profile does not exist on disk.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.Name)
}

// IsNotFound returns true when err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// Store persists profiles as one JSON file per profile under the config
// directory. Writes are atomic (temp file + rename).
type Store struct {
	paths config.Paths
}

// NewStore creates a store over the given path layout.
func NewStore(paths config.Paths) *Store {
	return &Store{paths: paths}
}

// Load reads a profile by name.
func (s *Store) Load(name string) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.paths.ProfilePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("profile: read %q: %w", name, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: parse %q: %w", name, err)
	}

	return &p, nil
}

// Save validates and writes the profile atomically.
func (s *Store) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.paths.ProfilesDir, 0o755); err != nil {
		return fmt.Errorf("profile: create profile directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: serialize %q: %w", p.Name, err)
	}

	return atomicWrite(s.paths.ProfilePath(p.Name), data)
}

// Delete removes a profile file. Deleting a missing profile is not an error.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	if err := os.Remove(s.paths.ProfilePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("profile: delete %q: %w", name, err)
	}
	return nil
}

// Exists reports whether a profile with the given name is stored.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(s.paths.ProfilePath(name))
	return err == nil
}

// List returns all stored profile names in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.paths.ProfilesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: list: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}

	sort.Strings(names)
	return names, nil
}

// atomicWrite replaces path with data via a temp file in the same directory,
// so readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("profile: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("profile: save %s: %w", filepath.Base(path), err)
	}
	return nil
}
