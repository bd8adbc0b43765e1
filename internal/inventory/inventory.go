// Package inventory produces a coherent snapshot of currently attached
// display hardware: monitors by stable description and Thunderbolt docks by
// UUID. It is cheap to call and safe to call repeatedly.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyprpier/hyprpier/internal/hypr"
	"github.com/hyprpier/hyprpier/internal/thunderbolt"
)

// ErrUnavailable marks a failed hardware query. Callers must not treat it as
// "nothing attached" - doing so would wrongly resolve to the undocked profile.
var ErrUnavailable = errors.New("inventory unavailable")

// Dock is an attached Thunderbolt peripheral.
type Dock struct {
	UUID string
	Name string
}

// Snapshot is the hardware state at one point in time.
type Snapshot struct {
	Monitors     []string // stable monitor descriptions, sorted
	Docks        []Dock   // attached docks, sorted by UUID
	SecurityMode string
}

// DockUUIDs returns the attached dock identities in sorted order.
func (s Snapshot) DockUUIDs() []string {
	uuids := make([]string, len(s.Docks))
	for i, d := range s.Docks {
		uuids[i] = d.UUID
	}
	return uuids
}

// MonitorSource queries attached outputs from the compositor.
type MonitorSource interface {
	Monitors(ctx context.Context) ([]hypr.Monitor, error)
}

// DockSource enumerates Thunderbolt peripherals.
type DockSource interface {
	DetectDocks() ([]thunderbolt.Device, error)
	SecurityMode() string
}

// Inventory combines the compositor and Thunderbolt views of the hardware.
type Inventory struct {
	monitors MonitorSource
	docks    DockSource
}

// New creates an inventory over the given sources.
func New(monitors MonitorSource, docks DockSource) *Inventory {
	return &Inventory{monitors: monitors, docks: docks}
}

// Snapshot enumerates attached hardware. Any underlying query failure is
// reported as ErrUnavailable rather than an empty snapshot.
func (inv *Inventory) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	monitors, err := inv.monitors.Monitors(ctx)
	if err != nil {
		return snap, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, m := range monitors {
		if m.Description == "" {
			continue
		}
		snap.Monitors = append(snap.Monitors, m.Description)
	}
	sort.Strings(snap.Monitors)

	devices, err := inv.docks.DetectDocks()
	if err != nil {
		return snap, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, dev := range devices {
		snap.Docks = append(snap.Docks, Dock{UUID: dev.UUID, Name: dev.Name})
	}
	sort.Slice(snap.Docks, func(i, j int) bool {
		return snap.Docks[i].UUID < snap.Docks[j].UUID
	})

	snap.SecurityMode = inv.docks.SecurityMode()
	return snap, nil
}
