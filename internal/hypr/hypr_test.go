package hypr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyprpier/hyprpier/internal/profile"
)

func fakeRunner(output string, err error) runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(output), err
	}
}

const monitorsJSON = `[
  {"id":0,"name":"eDP-1","description":"BOE 0x0BCA","width":1920,"height":1200,"refreshRate":60.0,"x":0,"y":0,"scale":1.0,"transform":0,"disabled":false},
  {"id":1,"name":"DP-5","description":"Dell Inc. DELL U2720Q 123ABC","width":3840,"height":2160,"refreshRate":59.99,"x":1920,"y":0,"scale":1.5,"transform":0,"disabled":false}
]`

func TestMonitors(t *testing.T) {
	c := NewController("")
	c.run = fakeRunner(monitorsJSON, nil)

	monitors, err := c.Monitors(context.Background())
	if err != nil {
		t.Fatalf("Monitors: %v", err)
	}
	if len(monitors) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(monitors))
	}
	if monitors[1].Description != "Dell Inc. DELL U2720Q 123ABC" {
		t.Errorf("unexpected description: %q", monitors[1].Description)
	}
}

func TestMonitorsQueryFailure(t *testing.T) {
	c := NewController("")
	c.run = fakeRunner("", errors.New("hyprctl not found"))

	if _, err := c.Monitors(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveNamesRemapsPortsAndWorkspaces(t *testing.T) {
	c := NewController("")
	c.run = fakeRunner(monitorsJSON, nil)

	// Profile was saved when the Dell panel sat on DP-3; it is now on DP-5.
	p := &profile.Profile{
		Name: "docked",
		Monitors: []profile.MonitorSpec{
			{Name: "DP-3", Description: "Dell Inc. DELL U2720Q 123ABC", Enabled: true},
			{Name: "HDMI-1", Description: "Unplugged Monitor XYZ", Enabled: true},
		},
		Workspaces: []profile.Workspace{{ID: 1, Monitor: "DP-3", Default: true}},
	}

	if err := c.ResolveNames(context.Background(), p); err != nil {
		t.Fatalf("ResolveNames: %v", err)
	}

	if p.Monitors[0].Name != "DP-5" {
		t.Errorf("monitor not remapped: %q", p.Monitors[0].Name)
	}
	if p.Workspaces[0].Monitor != "DP-5" {
		t.Errorf("workspace not remapped: %q", p.Workspaces[0].Monitor)
	}
	// Detached hardware keeps the stored name as fallback.
	if p.Monitors[1].Name != "HDMI-1" {
		t.Errorf("fallback name changed: %q", p.Monitors[1].Name)
	}
}

func TestWriteConfig(t *testing.T) {
	confPath := filepath.Join(t.TempDir(), "monitors.conf")
	c := NewController(confPath)

	p := &profile.Profile{
		Name: "docked",
		Monitors: []profile.MonitorSpec{
			{
				Name: "DP-3", Description: "Dell Inc. DELL U2720Q 123ABC",
				Enabled: true, Resolution: "3840x2160", RefreshRate: 60,
				Position: profile.Position{X: 0, Y: 0}, Scale: 1.5,
			},
			{Name: "eDP-1", Enabled: false},
			{
				Name: "HDMI-1", Enabled: true, Resolution: "1920x1080",
				RefreshRate: 75, Position: profile.Position{X: 2560, Y: 0},
				Scale: 1, Transform: 1,
			},
		},
		Workspaces: []profile.Workspace{{ID: 2, Monitor: "DP-3", Default: true}},
	}

	if err := c.WriteConfig(p); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	data, err := os.ReadFile(confPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"monitor=DP-3,3840x2160@60,0x0,1.5",
		"monitor=eDP-1,disable",
		"monitor=HDMI-1,1920x1080@75,2560x0,1,transform,1",
		"workspace=2,monitor:DP-3,default:true",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q:\n%s", want, content)
		}
	}
}

func TestApplyRuntimeBatchesCommands(t *testing.T) {
	var gotArgs []string
	c := NewController("")
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return nil, nil
	}

	p := &profile.Profile{
		Name: "docked",
		Monitors: []profile.MonitorSpec{
			{Name: "DP-3", Enabled: true, Resolution: "2560x1440", RefreshRate: 144, Scale: 1},
		},
	}

	if err := c.ApplyRuntime(context.Background(), p); err != nil {
		t.Fatalf("ApplyRuntime: %v", err)
	}

	if len(gotArgs) != 3 || gotArgs[0] != "hyprctl" || gotArgs[1] != "--batch" {
		t.Fatalf("unexpected invocation: %v", gotArgs)
	}
	if !strings.Contains(gotArgs[2], "keyword monitor DP-3,2560x1440@144,0x0,1") {
		t.Errorf("unexpected batch: %q", gotArgs[2])
	}
}

func TestApplyRuntimeTimeout(t *testing.T) {
	c := NewController("")
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &profile.Profile{
		Name:     "stuck",
		Monitors: []profile.MonitorSpec{{Name: "DP-1", Enabled: true, Resolution: "1920x1080", RefreshRate: 60, Scale: 1}},
	}
	if err := c.ApplyRuntime(ctx, p); err == nil {
		t.Fatal("expected timeout error")
	}
}
