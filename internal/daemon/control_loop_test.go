package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/inventory"
	"github.com/hyprpier/hyprpier/internal/notify"
	"github.com/hyprpier/hyprpier/internal/profile"
)

type fakeInventory struct {
	mu   sync.Mutex
	snap inventory.Snapshot
	err  error
}

func (f *fakeInventory) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeInventory) set(snap inventory.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	f.err = err
}

type fakeDisplay struct {
	mu      sync.Mutex
	applied []string
	err     error
}

func (f *fakeDisplay) Apply(ctx context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, p.Name)
	return nil
}

func (f *fakeDisplay) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func (f *fakeDisplay) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// blockingDisplay parks Apply until released and records whether the apply
// context was cancelled while it waited.
type blockingDisplay struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	ctxErr  error
	applied []string
}

func newBlockingDisplay() *blockingDisplay {
	return &blockingDisplay{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (d *blockingDisplay) Apply(ctx context.Context, p *profile.Profile) error {
	select {
	case d.started <- struct{}{}:
	default:
	}
	<-d.release

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctxErr = ctx.Err()
	if d.ctxErr != nil {
		return d.ctxErr
	}
	d.applied = append(d.applied, p.Name)
	return nil
}

func (d *blockingDisplay) contextError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctxErr
}

// failingMetaStore reads real metadata but rejects every write.
type failingMetaStore struct {
	*profile.MetadataStore
}

func (s *failingMetaStore) Update(fn func(*profile.Metadata) error) error {
	return errors.New("disk full")
}

type loopFixture struct {
	loop     *controlLoop
	inv      *fakeInventory
	display  *fakeDisplay
	profiles *profile.Store
	meta     *profile.MetadataStore
	bus      *eventbus.Bus
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("XDG_RUNTIME_DIR", dir)

	paths := config.GetPaths()
	if err := config.EnsureDirs(paths); err != nil {
		t.Fatal(err)
	}

	settings := config.Settings{
		SettleDelay:  20 * time.Millisecond,
		ApplyTimeout: time.Second,
	}

	inv := &fakeInventory{}
	display := &fakeDisplay{}
	profiles := profile.NewStore(paths)
	meta := profile.NewMetadataStore(paths.Metadata)
	bus := eventbus.New()
	t.Cleanup(bus.Shutdown)

	loop := newControlLoop(settings, profiles, meta, inv, display, bus, nil, notify.New(false))

	return &loopFixture{
		loop:     loop,
		inv:      inv,
		display:  display,
		profiles: profiles,
		meta:     meta,
		bus:      bus,
	}
}

func (f *loopFixture) saveProfile(t *testing.T, name string) {
	t.Helper()
	p := &profile.Profile{
		Name: name,
		Monitors: []profile.MonitorSpec{
			{Description: "Dell U2723QE", Enabled: true, Resolution: "3840x2160", RefreshRate: 60, Scale: 1.5},
		},
	}
	if err := f.profiles.Save(p); err != nil {
		t.Fatal(err)
	}
}

func (f *loopFixture) start(t *testing.T) {
	t.Helper()
	if err := f.loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.loop.Shutdown(ctx)
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartupPassAppliesLinkedProfile(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "docked")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.LinkDock("aa-bb-cc", "docked")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{Docks: []inventory.Dock{{UUID: "aa-bb-cc"}}}, nil)

	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		names := f.display.names()
		return len(names) == 1 && names[0] == "docked"
	})

	meta, err := f.meta.Get()
	if err != nil {
		t.Fatal(err)
	}
	if meta.ActiveProfile != "docked" {
		t.Fatalf("active profile = %q, want docked", meta.ActiveProfile)
	}
}

func TestTriggerBurstCoalescesIntoOneApply(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "docked")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.LinkDock("aa-bb-cc", "docked")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	// No docks at startup and no fallback: the startup pass is a no-op.
	f.start(t)
	time.Sleep(50 * time.Millisecond)

	f.inv.set(inventory.Snapshot{Docks: []inventory.Dock{{UUID: "aa-bb-cc"}}}, nil)
	for i := 0; i < 5; i++ {
		f.loop.Trigger(eventbus.SourceUdev, "udev add")
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(f.display.names()) == 1
	})

	// Let any residual debounce windows settle and confirm no extra apply.
	time.Sleep(100 * time.Millisecond)
	if names := f.display.names(); len(names) != 1 {
		t.Fatalf("expected exactly 1 apply, got %v", names)
	}
}

func TestInventoryFailureKeepsCurrentProfile(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "docked")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.SetActive("docked")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{}, inventory.ErrUnavailable)

	sub := eventbus.SubscribeTo(f.bus, eventbus.Daemon.Applied)
	defer sub.Close()

	f.start(t)

	select {
	case env := <-sub.C():
		if env.Payload.Outcome != eventbus.OutcomeSkipped {
			t.Fatalf("expected skipped outcome, got %+v", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no apply result published")
	}

	if len(f.display.names()) != 0 {
		t.Fatal("display must not be touched when inventory is unavailable")
	}
	meta, _ := f.meta.Get()
	if meta.ActiveProfile != "docked" {
		t.Fatalf("active profile changed to %q", meta.ActiveProfile)
	}
}

func TestFailedApplyLeavesMetadataAndRetries(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "docked")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.LinkDock("aa-bb-cc", "docked")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{Docks: []inventory.Dock{{UUID: "aa-bb-cc"}}}, nil)
	f.display.fail(errors.New("hyprctl exploded"))

	sub := eventbus.SubscribeTo(f.bus, eventbus.Daemon.Applied)
	defer sub.Close()

	f.start(t)

	select {
	case env := <-sub.C():
		if env.Payload.Outcome != eventbus.OutcomeFailed {
			t.Fatalf("expected failed outcome, got %+v", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no apply result published")
	}

	meta, _ := f.meta.Get()
	if meta.ActiveProfile != "" {
		t.Fatalf("failed apply must not set active profile, got %q", meta.ActiveProfile)
	}

	// The same hardware state must be retried on the next trigger.
	f.display.fail(nil)
	f.loop.Trigger(eventbus.SourceUdev, "retry")

	waitFor(t, 2*time.Second, func() bool {
		names := f.display.names()
		return len(names) == 1 && names[0] == "docked"
	})

	meta, _ = f.meta.Get()
	if meta.ActiveProfile != "docked" {
		t.Fatalf("active profile = %q after successful retry", meta.ActiveProfile)
	}
}

func TestNoChangeWhenActiveMatches(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "docked")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.LinkDock("aa-bb-cc", "docked")
		m.SetActive("docked")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{Docks: []inventory.Dock{{UUID: "aa-bb-cc"}}}, nil)

	sub := eventbus.SubscribeTo(f.bus, eventbus.Daemon.Applied)
	defer sub.Close()

	f.start(t)

	select {
	case env := <-sub.C():
		if env.Payload.Outcome != eventbus.OutcomeNoChange {
			t.Fatalf("expected no_change, got %+v", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no apply result published")
	}
	if len(f.display.names()) != 0 {
		t.Fatal("no_change must not touch the display")
	}
}

func TestUndockedFallbackApplied(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "laptop")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.SetUndocked("laptop")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{}, nil)

	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		names := f.display.names()
		return len(names) == 1 && names[0] == "laptop"
	})
}

func TestManualApplyByName(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "presentation")
	f.inv.set(inventory.Snapshot{}, nil)
	f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := f.loop.ApplyManual(ctx, api.ApplyRequest{Profile: "presentation"})
	if err != nil {
		t.Fatalf("ApplyManual: %v", err)
	}
	if result.Outcome != string(eventbus.OutcomeApplied) {
		t.Fatalf("unexpected result: %+v", result)
	}

	meta, _ := f.meta.Get()
	if meta.ActiveProfile != "presentation" {
		t.Fatalf("active profile = %q", meta.ActiveProfile)
	}
}

func TestManualApplyUnknownProfile(t *testing.T) {
	f := newLoopFixture(t)
	f.inv.set(inventory.Snapshot{}, nil)
	f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.loop.ApplyManual(ctx, api.ApplyRequest{Profile: "ghost"})
	if !profile.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestShutdownDrainsInFlightApply(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "laptop")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.SetUndocked("laptop")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{}, nil)

	display := newBlockingDisplay()
	f.loop.display = display

	f.start(t)

	select {
	case <-display.started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup apply never reached the display")
	}

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shutdownDone <- f.loop.Shutdown(ctx)
	}()

	// Shutdown must wait for the apply, not race past it.
	select {
	case err := <-shutdownDone:
		t.Fatalf("Shutdown returned with apply still in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(display.release)

	select {
	case err := <-shutdownDone:
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return after the apply finished")
	}

	if err := display.contextError(); err != nil {
		t.Fatalf("apply context was cancelled during shutdown: %v", err)
	}
	meta, err := f.meta.Get()
	if err != nil {
		t.Fatal(err)
	}
	if meta.ActiveProfile != "laptop" {
		t.Fatalf("active profile = %q after drained apply", meta.ActiveProfile)
	}
}

func TestTriggerDuringApplyKeepsApplyingState(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "laptop")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.SetUndocked("laptop")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{}, nil)

	display := newBlockingDisplay()
	f.loop.display = display

	f.start(t)

	select {
	case <-display.started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup apply never reached the display")
	}

	f.loop.Trigger(eventbus.SourceUdev, "udev add")
	if state := f.loop.State(); state != eventbus.StateApplying {
		t.Fatalf("state = %s while an apply is in flight, want %s", state, eventbus.StateApplying)
	}

	close(display.release)

	// Once the loop drains back to idle a trigger opens a debounce window.
	time.Sleep(100 * time.Millisecond)
	waitFor(t, 2*time.Second, func() bool {
		return f.loop.State() == eventbus.StateIdle
	})
	f.loop.Trigger(eventbus.SourceUdev, "udev add")
	if state := f.loop.State(); state != eventbus.StateDebouncing {
		t.Fatalf("state = %s after idle trigger, want %s", state, eventbus.StateDebouncing)
	}
}

func TestPersistFailureAfterApplyIsSurfaced(t *testing.T) {
	f := newLoopFixture(t)
	f.saveProfile(t, "laptop")
	if err := f.meta.Update(func(m *profile.Metadata) error {
		m.SetUndocked("laptop")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.inv.set(inventory.Snapshot{}, nil)
	f.loop.meta = &failingMetaStore{MetadataStore: f.meta}

	sub := eventbus.SubscribeTo(f.bus, eventbus.Daemon.Applied)
	defer sub.Close()

	f.start(t)

	select {
	case env := <-sub.C():
		if env.Payload.Outcome != eventbus.OutcomeApplied {
			t.Fatalf("expected applied outcome, got %+v", env.Payload)
		}
		if !strings.Contains(env.Payload.Error, "not persisted") {
			t.Fatalf("persist failure missing from result: %+v", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no apply result published")
	}

	if names := f.display.names(); len(names) != 1 || names[0] != "laptop" {
		t.Fatalf("display applies = %v", names)
	}
	meta, _ := f.meta.Get()
	if meta.ActiveProfile != "" {
		t.Fatalf("active marker unexpectedly persisted: %q", meta.ActiveProfile)
	}
}

func TestStateTransitionsPublished(t *testing.T) {
	f := newLoopFixture(t)
	f.inv.set(inventory.Snapshot{}, nil)

	sub := eventbus.SubscribeTo(f.bus, eventbus.Daemon.State)
	defer sub.Close()

	f.start(t)

	// The startup pass has no docks and no fallback: idle → resolving → idle.
	var transitions []eventbus.StateChangeEvent
	timeout := time.After(2 * time.Second)
	for len(transitions) < 2 {
		select {
		case env := <-sub.C():
			transitions = append(transitions, env.Payload)
		case <-timeout:
			t.Fatalf("only saw transitions %v", transitions)
		}
	}

	if transitions[0].To != eventbus.StateResolving {
		t.Fatalf("first transition %+v, want to=resolving", transitions[0])
	}
	if transitions[1].To != eventbus.StateIdle {
		t.Fatalf("second transition %+v, want to=idle", transitions[1])
	}
}
