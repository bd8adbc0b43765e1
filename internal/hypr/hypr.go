// Package hypr drives the Hyprland compositor: it generates the monitors.conf
// fragment for a profile, applies layouts at runtime through hyprctl, and
// queries currently attached outputs.
package hypr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hyprpier/hyprpier/internal/profile"
)

// Monitor is one output as reported by the compositor. Description is the
// stable hardware identity used to join against saved profiles; Name is the
// kernel-assigned port and changes across reconnections.
type Monitor struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate float64 `json:"refreshRate"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Scale       float64 `json:"scale"`
	Transform   int     `json:"transform"`
	Disabled    bool    `json:"disabled"`
}

// runner executes an external command and returns its combined stdout.
// Swapped out in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Controller generates compositor configuration and applies it live.
type Controller struct {
	confPath string
	run      runner
}

// NewController creates a controller writing the config fragment to confPath.
func NewController(confPath string) *Controller {
	return &Controller{confPath: confPath, run: execRunner}
}

// IsRunning reports whether a Hyprland session is available.
func (c *Controller) IsRunning() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

// Monitors queries the compositor for currently attached outputs.
func (c *Controller) Monitors(ctx context.Context) ([]Monitor, error) {
	out, err := c.run(ctx, "hyprctl", "-j", "monitors")
	if err != nil {
		return nil, fmt.Errorf("hypr: query monitors: %w", err)
	}

	var monitors []Monitor
	if err := json.Unmarshal(out, &monitors); err != nil {
		return nil, fmt.Errorf("hypr: parse monitors: %w", err)
	}
	return monitors, nil
}

// ResolveNames rewrites the port names in the profile's monitor specs to the
// ports the hardware currently occupies, matched by description. Specs whose
// description is not attached keep their stored name as a fallback.
func (c *Controller) ResolveNames(ctx context.Context, p *profile.Profile) error {
	monitors, err := c.Monitors(ctx)
	if err != nil {
		return err
	}

	byDescription := make(map[string]string, len(monitors))
	for _, m := range monitors {
		byDescription[m.Description] = m.Name
	}

	for i := range p.Monitors {
		spec := &p.Monitors[i]
		if spec.Description == "" {
			continue
		}
		if name, ok := byDescription[spec.Description]; ok && name != spec.Name {
			renameWorkspaces(p, spec.Name, name)
			spec.Name = name
		}
	}
	return nil
}

// WriteConfig renders the profile into the monitors.conf fragment. The write
// is atomic so Hyprland never sources a half-written file.
func (c *Controller) WriteConfig(p *profile.Profile) error {
	var sb strings.Builder
	sb.WriteString("# Generated by hyprpier - do not edit\n")
	fmt.Fprintf(&sb, "# Profile: %s\n\n", p.Name)

	for _, spec := range p.Monitors {
		sb.WriteString(monitorLine(spec))
		sb.WriteByte('\n')
	}

	if len(p.Workspaces) > 0 {
		sb.WriteByte('\n')
		for _, ws := range p.Workspaces {
			sb.WriteString(workspaceLine(ws))
			sb.WriteByte('\n')
		}
	}

	tmp := c.confPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("hypr: write config: %w", err)
	}
	if err := os.Rename(tmp, c.confPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("hypr: save config: %w", err)
	}
	return nil
}

// ApplyRuntime pushes the profile to the live session in one hyprctl batch.
// The context bounds the call; a timeout surfaces as an error.
func (c *Controller) ApplyRuntime(ctx context.Context, p *profile.Profile) error {
	var cmds []string
	for _, spec := range p.Monitors {
		cmds = append(cmds, "keyword monitor "+monitorValue(spec))
	}
	for _, ws := range p.Workspaces {
		cmds = append(cmds, "keyword workspace "+workspaceValue(ws))
	}
	if len(cmds) == 0 {
		return nil
	}

	if _, err := c.run(ctx, "hyprctl", "--batch", strings.Join(cmds, ";")); err != nil {
		return fmt.Errorf("hypr: apply runtime: %w", err)
	}
	return nil
}

func monitorLine(spec profile.MonitorSpec) string {
	return "monitor=" + monitorValue(spec)
}

func monitorValue(spec profile.MonitorSpec) string {
	if !spec.Enabled {
		return spec.Name + ",disable"
	}

	value := fmt.Sprintf("%s,%s@%g,%dx%d,%g",
		spec.Name, spec.Resolution, spec.RefreshRate,
		spec.Position.X, spec.Position.Y, spec.Scale)
	if spec.Transform != 0 {
		value += fmt.Sprintf(",transform,%d", spec.Transform)
	}
	return value
}

func workspaceLine(ws profile.Workspace) string {
	return "workspace=" + workspaceValue(ws)
}

func workspaceValue(ws profile.Workspace) string {
	value := fmt.Sprintf("%d,monitor:%s", ws.ID, ws.Monitor)
	if ws.Default {
		value += ",default:true"
	}
	return value
}

func renameWorkspaces(p *profile.Profile, from, to string) {
	for i := range p.Workspaces {
		if p.Workspaces[i].Monitor == from {
			p.Workspaces[i].Monitor = to
		}
	}
	if p.LidSwitch != nil && p.LidSwitch.Monitor == from {
		p.LidSwitch.Monitor = to
	}
}
