// Package daemon wires the hyprpierd runtime: hardware watching,
// profile resolution, and the control socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/hypr"
	"github.com/hyprpier/hyprpier/internal/inventory"
	"github.com/hyprpier/hyprpier/internal/journal"
	"github.com/hyprpier/hyprpier/internal/notify"
	"github.com/hyprpier/hyprpier/internal/procutil"
	"github.com/hyprpier/hyprpier/internal/profile"
	daemonruntime "github.com/hyprpier/hyprpier/internal/runtime"
	"github.com/hyprpier/hyprpier/internal/server"
	"github.com/hyprpier/hyprpier/internal/thunderbolt"
)

const serviceOpTimeout = 10 * time.Second

// ErrAlreadyRunning indicates another daemon instance holds the lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// Options groups dependencies required to construct a Daemon.
type Options struct {
	Paths    config.Paths
	Settings config.Settings

	// SysfsRoot overrides the Thunderbolt sysfs tree, used in tests.
	SysfsRoot string
}

// Daemon is the hyprpierd process: it owns the event bus, the control
// loop, and the unix control socket.
type Daemon struct {
	paths       config.Paths
	settings    config.Settings
	bus         *eventbus.Bus
	journal     *journal.Journal
	loop        *controlLoop
	meta        *profile.MetadataStore
	inv         *inventory.Inventory
	serviceHost *daemonruntime.ServiceHost
	lifecycle   *daemonruntime.Lifecycle
	startTime   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	errMu  sync.Mutex
	runErr error
}

// hyprDisplay runs the full apply pipeline against Hyprland: remap
// monitor descriptions to current port names, persist monitors.conf,
// then push the layout into the running compositor.
type hyprDisplay struct {
	ctrl *hypr.Controller
}

func (h hyprDisplay) Apply(ctx context.Context, p *profile.Profile) error {
	if err := h.ctrl.ResolveNames(ctx, p); err != nil {
		return fmt.Errorf("resolve monitor names: %w", err)
	}
	if err := h.ctrl.WriteConfig(p); err != nil {
		return fmt.Errorf("write monitors config: %w", err)
	}
	if err := h.ctrl.ApplyRuntime(ctx, p); err != nil {
		return fmt.Errorf("apply runtime config: %w", err)
	}
	return nil
}

// New builds a daemon around the given paths and settings.
func New(opts Options) (*Daemon, error) {
	paths := opts.Paths
	if err := config.EnsureDirs(paths); err != nil {
		return nil, fmt.Errorf("daemon: ensure directories: %w", err)
	}

	bus := eventbus.New()

	eventJournal, err := journal.Open(paths.JournalDB)
	if err != nil {
		return nil, fmt.Errorf("daemon: open journal: %w", err)
	}

	hyprctl := hypr.NewController(paths.MonitorsConf)
	scanner := thunderbolt.NewScanner(opts.SysfsRoot)
	inv := inventory.New(hyprctl, scanner)

	profiles := profile.NewStore(paths)
	meta := profile.NewMetadataStore(paths.Metadata)
	notifier := notify.New(opts.Settings.NotificationsEnabled())

	loop := newControlLoop(opts.Settings, profiles, meta, inv, hyprDisplay{ctrl: hyprctl}, bus, eventJournal, notifier)

	d := &Daemon{
		paths:       paths,
		settings:    opts.Settings,
		bus:         bus,
		journal:     eventJournal,
		loop:        loop,
		meta:        meta,
		inv:         inv,
		serviceHost: daemonruntime.NewServiceHost(),
		lifecycle:   daemonruntime.NewLifecycle(),
	}

	if err := d.serviceHost.Register("control_loop", func(ctx context.Context) (daemonruntime.Service, error) {
		return loop, nil
	}); err != nil {
		return nil, err
	}

	if opts.Settings.RescanInterval > 0 {
		if err := d.serviceHost.Register("rescan", func(ctx context.Context) (daemonruntime.Service, error) {
			return newRescanService(opts.Settings.RescanInterval, loop), nil
		}); err != nil {
			return nil, err
		}
	}

	if err := d.serviceHost.Register("control_socket", func(ctx context.Context) (daemonruntime.Service, error) {
		apiServer := server.New(d, eventJournal, bus)
		return server.NewSocketService(paths.Socket, apiServer), nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}

// Start runs the daemon until Shutdown is called. It blocks.
func (d *Daemon) Start() error {
	if pid, running := RunningPID(d.paths.Lock); running {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	if err := daemonruntime.WritePIDFile(d.paths.Lock, os.Getpid()); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer daemonruntime.RemovePIDFile(d.paths.Lock)

	d.startTime = time.Now()
	d.ctx, d.cancel = context.WithCancel(context.Background())

	if err := d.serviceHost.Start(d.ctx); err != nil {
		d.cancel()
		return fmt.Errorf("daemon: start services: %w", err)
	}
	d.watchHostErrors()

	log.Printf("[Daemon] listening on %s", d.paths.Socket)

	<-d.lifecycle.Done()

	d.cancel()

	stopCtx, cancel := context.WithTimeout(context.Background(), serviceOpTimeout)
	if err := d.serviceHost.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "daemon: service shutdown error: %v\n", err)
		d.setRunError(err)
	}
	cancel()

	d.bus.Shutdown()
	if err := d.journal.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: journal close error: %v\n", err)
	}

	return d.runError()
}

// Shutdown signals the daemon to stop.
func (d *Daemon) Shutdown() {
	d.lifecycle.Shutdown()
}

func (d *Daemon) watchHostErrors() {
	go func() {
		for err := range d.serviceHost.Errors() {
			if err == nil {
				continue
			}
			d.setRunError(err)
			fmt.Fprintf(os.Stderr, "%v\n", err)
			d.lifecycle.Shutdown()
		}
	}()
}

func (d *Daemon) setRunError(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.runErr == nil {
		d.runErr = err
	}
}

func (d *Daemon) runError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.runErr
}

// RunningPID reads the lock file and reports whether the recorded
// process is still alive. Stale lock files are treated as not running.
func RunningPID(lockPath string) (int, bool) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !procutil.IsProcessAlive(pid) {
		return 0, false
	}
	return pid, true
}
