package profile

import (
	"fmt"
	"strings"
)

const maxNameLength = 100

// Profile is a named multi-monitor configuration. Profiles are only mutated
// through explicit saves; the daemon never rewrites them.
type Profile struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Monitors    []MonitorSpec `json:"monitors"`
	Workspaces  []Workspace   `json:"workspaces,omitempty"`
	LidSwitch   *LidSwitch    `json:"lid_switch,omitempty"`
}

// MonitorSpec captures the target state of one physical output. Description
// is the stable hardware identity (vendor/model/serial); Name is the port the
// output had when the profile was saved and may change across reconnections.
type MonitorSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
	Resolution  string   `json:"resolution"`
	RefreshRate float64  `json:"refresh_rate"`
	Position    Position `json:"position"`
	Scale       float64  `json:"scale"`
	Transform   int      `json:"transform"`
	Mode        string   `json:"mode"`
}

// Position is an offset in the virtual desktop.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Workspace assigns a Hyprland workspace to a monitor.
type Workspace struct {
	ID      int    `json:"id"`
	Monitor string `json:"monitor"`
	Default bool   `json:"default,omitempty"`
}

// LidSwitch describes laptop lid behaviour for the profile.
type LidSwitch struct {
	Enabled bool   `json:"enabled"`
	Monitor string `json:"monitor"`
	OnClose string `json:"on_close"`
	OnOpen  string `json:"on_open"`
}

// New returns an empty profile with the given name.
func New(name string) *Profile {
	return &Profile{Name: name}
}

// Validate checks profile invariants enforced at save time: a valid name and
// unique monitor descriptions.
func (p *Profile) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(p.Monitors))
	for _, m := range p.Monitors {
		if m.Description == "" {
			continue
		}
		if _, dup := seen[m.Description]; dup {
			return fmt.Errorf("profile: duplicate monitor description %q", m.Description)
		}
		seen[m.Description] = struct{}{}
	}

	return nil
}

// ValidateName rejects names that would be unsafe as file names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("profile: name cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("profile: name too long (max %d characters)", maxNameLength)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("profile: name cannot start with '.'")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("profile: name cannot contain path separators")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("profile: name cannot contain '..'")
	}
	if i := strings.IndexAny(name, "<>:\"|?*\x00"); i >= 0 {
		return fmt.Errorf("profile: name contains invalid character %q", name[i])
	}
	return nil
}
