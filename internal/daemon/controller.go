package daemon

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/version"
)

// Status assembles the daemon's view for the /status endpoint.
func (d *Daemon) Status(ctx context.Context) (api.Status, error) {
	status := api.Status{
		Version:       version.String(),
		PID:           os.Getpid(),
		State:         string(d.loop.State()),
		Docks:         []api.DockStatus{},
		Monitors:      []string{},
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
	}

	meta, err := d.meta.Get()
	if err != nil {
		return api.Status{}, err
	}
	status.ActiveProfile = meta.ActiveProfile
	status.UndockedProfile = meta.UndockedProfile

	// Hardware enumeration is best effort here: status must work even
	// when the compositor or sysfs is briefly unavailable.
	snap, err := d.inv.Snapshot(ctx)
	if err != nil {
		log.Printf("[Daemon] status: inventory unavailable: %v", err)
		return status, nil
	}

	status.Monitors = snap.Monitors
	status.SecurityMode = snap.SecurityMode
	for _, dock := range snap.Docks {
		entry := api.DockStatus{UUID: dock.UUID, Name: dock.Name}
		if linked, ok := meta.DockProfile(dock.UUID); ok {
			entry.Profile = linked
		}
		status.Docks = append(status.Docks, entry)
	}

	return status, nil
}

// Notify schedules a debounced hardware re-check.
func (d *Daemon) Notify(source eventbus.Source, reason string) {
	d.loop.Trigger(source, reason)
}

// Apply runs a manual or automatic profile apply.
func (d *Daemon) Apply(ctx context.Context, req api.ApplyRequest) (api.ApplyResult, error) {
	return d.loop.ApplyManual(ctx, req)
}

// RequestShutdown asks the daemon to stop without blocking the caller.
func (d *Daemon) RequestShutdown() {
	go d.Shutdown()
}
