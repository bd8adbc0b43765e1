package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/debounce"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/inventory"
	"github.com/hyprpier/hyprpier/internal/journal"
	"github.com/hyprpier/hyprpier/internal/notify"
	"github.com/hyprpier/hyprpier/internal/profile"
	"github.com/hyprpier/hyprpier/internal/resolver"
)

// display applies a resolved profile to the compositor.
type display interface {
	Apply(ctx context.Context, p *profile.Profile) error
}

// snapshotter enumerates currently attached hardware.
type snapshotter interface {
	Snapshot(ctx context.Context) (inventory.Snapshot, error)
}

// recorder persists daemon events for later inspection.
type recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// metadataStore serialises reads and read-modify-writes of the dock/profile
// metadata record.
type metadataStore interface {
	Get() (profile.Metadata, error)
	Update(fn func(*profile.Metadata) error) error
}

type manualApply struct {
	req  api.ApplyRequest
	resp chan manualResult
}

type manualResult struct {
	result api.ApplyResult
	err    error
}

// controlLoop owns the daemon state machine. Hardware triggers are
// debounced, then a single resolution pass runs at a time; triggers
// arriving mid-apply coalesce into one re-check afterwards.
type controlLoop struct {
	settings config.Settings
	profiles *profile.Store
	meta     metadataStore
	inv      snapshotter
	display  display
	bus      *eventbus.Bus
	journal  recorder
	notifier *notify.Notifier

	debouncer *debounce.Debouncer
	settled   chan eventbus.Source
	manual    chan manualApply

	mu    sync.Mutex
	state eventbus.DaemonState

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newControlLoop(
	settings config.Settings,
	profiles *profile.Store,
	meta metadataStore,
	inv snapshotter,
	display display,
	bus *eventbus.Bus,
	journal recorder,
	notifier *notify.Notifier,
) *controlLoop {
	loop := &controlLoop{
		settings: settings,
		profiles: profiles,
		meta:     meta,
		inv:      inv,
		display:  display,
		bus:      bus,
		journal:  journal,
		notifier: notifier,
		settled:  make(chan eventbus.Source, 1),
		manual:   make(chan manualApply),
		state:    eventbus.StateIdle,
	}
	loop.debouncer = debounce.New(settings.SettleDelay, func() {
		select {
		case loop.settled <- eventbus.SourceUdev:
		default:
		}
	})
	return loop
}

// Start launches the loop and runs the startup resolution pass.
func (l *controlLoop) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.wg.Add(1)
	go l.run(runCtx)
	return nil
}

// Shutdown stops accepting triggers and waits for any in-flight apply.
func (l *controlLoop) Shutdown(ctx context.Context) error {
	l.debouncer.Stop()
	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger schedules a debounced hardware re-check.
func (l *controlLoop) Trigger(source eventbus.Source, reason string) {
	eventbus.Publish(context.Background(), l.bus, eventbus.Hotplug.Trigger, source,
		eventbus.TriggerEvent{Reason: reason, At: time.Now()})
	l.record(journal.Entry{Kind: journal.KindTrigger, Detail: reason})
	// A trigger landing mid-pass coalesces into a re-check afterwards; the
	// loop goroutine keeps reporting Resolving/Applying until then.
	l.setStateFrom(eventbus.StateIdle, eventbus.StateDebouncing)
	l.debouncer.Trigger()
}

// ApplyManual runs a manual apply on the loop goroutine, serialised with
// automatic resolution passes.
func (l *controlLoop) ApplyManual(ctx context.Context, req api.ApplyRequest) (api.ApplyResult, error) {
	call := manualApply{req: req, resp: make(chan manualResult, 1)}
	select {
	case l.manual <- call:
	case <-ctx.Done():
		return api.ApplyResult{}, ctx.Err()
	}

	select {
	case res := <-call.resp:
		return res.result, res.err
	case <-ctx.Done():
		return api.ApplyResult{}, ctx.Err()
	}
}

// State reports the current state machine position.
func (l *controlLoop) State() eventbus.DaemonState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *controlLoop) run(ctx context.Context) {
	defer l.wg.Done()

	// Resolve once at startup so a reboot while docked converges without
	// waiting for a hotplug event.
	l.record(journal.Entry{Kind: journal.KindStartup})
	l.resolveAndApply(ctx, eventbus.SourceStartup)

	for {
		select {
		case source := <-l.settled:
			l.resolveAndApply(ctx, source)
		case call := <-l.manual:
			result, err := l.applyManual(ctx, call.req)
			call.resp <- manualResult{result: result, err: err}
		case <-ctx.Done():
			return
		}
	}
}

func (l *controlLoop) resolveAndApply(ctx context.Context, source eventbus.Source) api.ApplyResult {
	l.setState(eventbus.StateResolving)
	defer l.setState(eventbus.StateIdle)

	snap, err := l.inv.Snapshot(ctx)
	if err != nil {
		// A failed hardware query is not the same as "no docks": leave
		// the current configuration alone.
		log.Printf("[ControlLoop] hardware inventory unavailable, keeping current profile: %v", err)
		result := api.ApplyResult{Outcome: string(eventbus.OutcomeSkipped), Error: err.Error()}
		l.finishPass(source, result, "")
		return result
	}

	meta, err := l.meta.Get()
	if err != nil {
		log.Printf("[ControlLoop] failed to read metadata: %v", err)
		result := api.ApplyResult{Outcome: string(eventbus.OutcomeSkipped), Error: err.Error()}
		l.finishPass(source, result, "")
		return result
	}

	action := resolver.Resolve(snap.DockUUIDs(), meta, l.profiles.Exists)

	switch action.Kind {
	case resolver.KindNoChange:
		log.Printf("[ControlLoop] profile %q already active, nothing to do", action.Profile)
		result := api.ApplyResult{Outcome: string(eventbus.OutcomeNoChange), Profile: action.Profile, Dock: action.Dock}
		l.finishPass(source, result, action.Dock)
		return result

	case resolver.KindUnresolvable:
		log.Printf("[ControlLoop] cannot resolve a profile: %s", action.Reason)
		l.notifyCritical(ctx, "No display profile", action.Reason)
		result := api.ApplyResult{Outcome: string(eventbus.OutcomeUnresolvable), Dock: action.Dock, Error: action.Reason}
		l.finishPass(source, result, action.Dock)
		return result

	case resolver.KindApplyFallback:
		if action.Profile == "" {
			log.Printf("[ControlLoop] no docks and no fallback profile configured, leaving layout alone")
			result := api.ApplyResult{Outcome: string(eventbus.OutcomeSkipped)}
			l.finishPass(source, result, "")
			return result
		}
		fallthrough

	default: // KindApply and non-empty KindApplyFallback
		result := l.applyProfile(action.Profile, action.Dock, action.Kind == resolver.KindApplyFallback)
		l.finishPass(source, result, action.Dock)
		return result
	}
}

// applyProfile loads and applies a profile, updating the active marker
// only after the compositor accepted the configuration. The apply runs
// under its own timeout, detached from the loop context, so a shutdown
// request drains an in-flight apply instead of aborting it mid-write.
func (l *controlLoop) applyProfile(name, dock string, fallback bool) api.ApplyResult {
	l.setState(eventbus.StateApplying)
	defer l.setState(eventbus.StateResolving)

	applyCtx, cancel := context.WithTimeout(context.Background(), l.settings.ApplyTimeout)
	defer cancel()

	p, err := l.profiles.Load(name)
	if err != nil {
		log.Printf("[ControlLoop] failed to load profile %q: %v", name, err)
		l.notifyCritical(applyCtx, "Profile apply failed", fmt.Sprintf("cannot load %s: %v", name, err))
		return api.ApplyResult{Outcome: string(eventbus.OutcomeFailed), Profile: name, Dock: dock, Error: err.Error()}
	}

	if err := l.display.Apply(applyCtx, p); err != nil {
		// The active marker stays untouched so the next trigger retries
		// from a clean slate.
		log.Printf("[ControlLoop] apply %q failed: %v", name, err)
		l.notifyCritical(applyCtx, "Profile apply failed", fmt.Sprintf("%s: %v", name, err))
		return api.ApplyResult{Outcome: string(eventbus.OutcomeFailed), Profile: name, Dock: dock, Error: err.Error()}
	}

	if err := l.meta.Update(func(m *profile.Metadata) error {
		m.SetActive(name)
		return nil
	}); err != nil {
		// The layout did change, so the outcome stays applied, but the
		// stale active marker must be visible to operators: the next pass
		// would re-apply and idempotence now rests on the compositor.
		log.Printf("[ControlLoop] applied %q but failed to persist active marker: %v", name, err)
		l.notifyCritical(applyCtx, "Profile state not saved", fmt.Sprintf("applied %s but could not persist the active marker: %v", name, err))
		return api.ApplyResult{
			Outcome: string(eventbus.OutcomeApplied),
			Profile: name,
			Dock:    dock,
			Error:   fmt.Sprintf("active marker not persisted: %v", err),
		}
	}

	log.Printf("[ControlLoop] applied profile %q (dock=%s fallback=%t)", name, dock, fallback)
	l.notifyInfo(applyCtx, "Display profile applied", name)
	return api.ApplyResult{Outcome: string(eventbus.OutcomeApplied), Profile: name, Dock: dock}
}

func (l *controlLoop) applyManual(ctx context.Context, req api.ApplyRequest) (api.ApplyResult, error) {
	if req.Auto {
		return l.resolveAndApply(ctx, eventbus.SourceCLI), nil
	}

	if !l.profiles.Exists(req.Profile) {
		return api.ApplyResult{}, profile.NotFoundError{Name: req.Profile}
	}

	l.setState(eventbus.StateResolving)
	defer l.setState(eventbus.StateIdle)

	result := l.applyProfile(req.Profile, "", false)
	l.finishPass(eventbus.SourceCLI, result, "")
	return result, nil
}

// finishPass records the pass outcome in the journal and on the bus.
func (l *controlLoop) finishPass(source eventbus.Source, result api.ApplyResult, dock string) {
	l.record(journal.Entry{
		Kind:    journal.KindApply,
		Outcome: result.Outcome,
		Profile: result.Profile,
		Dock:    dock,
		Detail:  result.Error,
	})
	eventbus.Publish(context.Background(), l.bus, eventbus.Daemon.Applied, source,
		eventbus.ApplyResultEvent{
			Outcome: eventbus.ApplyOutcome(result.Outcome),
			Profile: result.Profile,
			Dock:    dock,
			Error:   result.Error,
		})
}

func (l *controlLoop) setState(to eventbus.DaemonState) {
	l.mu.Lock()
	from := l.state
	if from == to {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.mu.Unlock()

	eventbus.Publish(context.Background(), l.bus, eventbus.Daemon.State, eventbus.SourceDaemon,
		eventbus.StateChangeEvent{From: from, To: to})
}

// setStateFrom transitions only when the machine currently sits in from.
func (l *controlLoop) setStateFrom(from, to eventbus.DaemonState) bool {
	l.mu.Lock()
	if l.state != from {
		l.mu.Unlock()
		return false
	}
	l.state = to
	l.mu.Unlock()

	eventbus.Publish(context.Background(), l.bus, eventbus.Daemon.State, eventbus.SourceDaemon,
		eventbus.StateChangeEvent{From: from, To: to})
	return true
}

func (l *controlLoop) record(entry journal.Entry) {
	if l.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.journal.Record(ctx, entry); err != nil {
		log.Printf("[ControlLoop] failed to record journal entry: %v", err)
	}
}

func (l *controlLoop) notifyInfo(ctx context.Context, summary, body string) {
	if err := l.notifier.Send(ctx, summary, body); err != nil {
		log.Printf("[ControlLoop] notification failed: %v", err)
	}
}

func (l *controlLoop) notifyCritical(ctx context.Context, summary, body string) {
	if err := l.notifier.SendCritical(ctx, summary, body); err != nil {
		log.Printf("[ControlLoop] notification failed: %v", err)
	}
}
