package inventory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hyprpier/hyprpier/internal/hypr"
	"github.com/hyprpier/hyprpier/internal/thunderbolt"
)

type fakeMonitors struct {
	monitors []hypr.Monitor
	err      error
}

func (f fakeMonitors) Monitors(ctx context.Context) ([]hypr.Monitor, error) {
	return f.monitors, f.err
}

type fakeDocks struct {
	docks []thunderbolt.Device
	err   error
	mode  string
}

func (f fakeDocks) DetectDocks() ([]thunderbolt.Device, error) { return f.docks, f.err }
func (f fakeDocks) SecurityMode() string                       { return f.mode }

func TestSnapshotSortsAndFilters(t *testing.T) {
	inv := New(
		fakeMonitors{monitors: []hypr.Monitor{
			{Name: "DP-5", Description: "Dell U2720Q"},
			{Name: "eDP-1", Description: "BOE 0x0BCA"},
			{Name: "HDMI-1", Description: ""}, // no stable identity
		}},
		fakeDocks{
			docks: []thunderbolt.Device{
				{UUID: "bbbb", Name: "Dock B"},
				{UUID: "aaaa", Name: "Dock A"},
			},
			mode: "user",
		},
	)

	snap, err := inv.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if !reflect.DeepEqual(snap.Monitors, []string{"BOE 0x0BCA", "Dell U2720Q"}) {
		t.Errorf("Monitors = %v", snap.Monitors)
	}
	if !reflect.DeepEqual(snap.DockUUIDs(), []string{"aaaa", "bbbb"}) {
		t.Errorf("DockUUIDs = %v", snap.DockUUIDs())
	}
	if snap.SecurityMode != "user" {
		t.Errorf("SecurityMode = %q", snap.SecurityMode)
	}
}

func TestSnapshotMonitorFailureIsUnavailable(t *testing.T) {
	inv := New(
		fakeMonitors{err: errors.New("hyprctl exited 1")},
		fakeDocks{},
	)

	_, err := inv.Snapshot(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSnapshotDockFailureIsUnavailable(t *testing.T) {
	inv := New(
		fakeMonitors{},
		fakeDocks{err: errors.New("permission denied")},
	)

	_, err := inv.Snapshot(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
