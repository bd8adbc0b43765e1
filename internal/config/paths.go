package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName    = "hyprpier"
	socketName = "hyprpier.sock"
)

// Paths contains the per-user file layout used by the daemon and CLI.
type Paths struct {
	ProfilesDir  string // Profile JSON files (~/.config/hyprpier)
	Metadata     string // Metadata file (~/.config/hyprpier/.metadata.json)
	Settings     string // Daemon settings file (~/.config/hyprpier/settings.yaml)
	MonitorsConf string // Generated Hyprland fragment (~/.config/hypr/monitors.conf)
	StateDir     string // Logs and journal (~/.local/state/hyprpier)
	JournalDB    string // SQLite event journal path
	Logs         string // Log directory
	Socket       string // Unix socket path ($XDG_RUNTIME_DIR/hyprpier.sock)
	Lock         string // Daemon pid file path
}

// GetPaths resolves the layout from XDG environment variables, falling back
// to the conventional locations under the user home directory.
func GetPaths() Paths {
	configDir := configHome()
	stateDir := filepath.Join(stateHome(), appName)
	runDir := runtimeDir()

	profilesDir := filepath.Join(configDir, appName)

	return Paths{
		ProfilesDir:  profilesDir,
		Metadata:     filepath.Join(profilesDir, ".metadata.json"),
		Settings:     filepath.Join(profilesDir, "settings.yaml"),
		MonitorsConf: filepath.Join(configDir, "hypr", "monitors.conf"),
		StateDir:     stateDir,
		JournalDB:    filepath.Join(stateDir, "journal.db"),
		Logs:         filepath.Join(stateDir, "logs"),
		Socket:       filepath.Join(runDir, socketName),
		Lock:         filepath.Join(runDir, "hyprpier.pid"),
	}
}

// ProfilePath returns the on-disk location for a named profile.
func (p Paths) ProfilePath(name string) string {
	return filepath.Join(p.ProfilesDir, name+".json")
}

// EnsureDirs creates the directory structure if it does not exist.
// A failure here is fatal at daemon startup.
func EnsureDirs(p Paths) error {
	dirs := []string{
		p.ProfilesDir,
		p.StateDir,
		p.Logs,
		filepath.Dir(p.MonitorsConf),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}

	return nil
}

// FindSocket locates a running daemon socket. When invoked from a udev
// context XDG_RUNTIME_DIR is not set, so /run/user/* is searched as well.
func FindSocket() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		candidate := filepath.Join(dir, socketName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir("/run/user")
	if err == nil {
		for _, entry := range entries {
			candidate := filepath.Join("/run/user", entry.Name(), socketName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("config: no daemon socket found - is the daemon running?")
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func stateHome() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state")
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
