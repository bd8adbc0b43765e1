// Package notify delivers best-effort desktop notifications through
// notify-send. Failures are reported but never fatal to the caller.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	defaultAppName = "hyprpier"
	defaultTimeout = 5 * time.Second
)

// Urgency levels understood by notify-send.
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyCritical = "critical"
)

type runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Notifier sends desktop notifications. The zero value is not usable,
// construct with New.
type Notifier struct {
	enabled bool
	appName string
	run     runner
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAppName overrides the application name shown in notifications.
func WithAppName(name string) Option {
	return func(n *Notifier) { n.appName = name }
}

func withRunner(run runner) Option {
	return func(n *Notifier) { n.run = run }
}

// New creates a Notifier. When enabled is false every Send is a no-op,
// so callers never need to branch on the setting themselves.
func New(enabled bool, opts ...Option) *Notifier {
	n := &Notifier{
		enabled: enabled,
		appName: defaultAppName,
		run:     execRunner,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send shows a notification with normal urgency.
func (n *Notifier) Send(ctx context.Context, summary, body string) error {
	return n.send(ctx, UrgencyNormal, summary, body)
}

// SendCritical shows a notification with critical urgency, used for
// apply failures and unresolvable hardware states.
func (n *Notifier) SendCritical(ctx context.Context, summary, body string) error {
	return n.send(ctx, UrgencyCritical, summary, body)
}

func (n *Notifier) send(ctx context.Context, urgency, summary, body string) error {
	if n == nil || !n.enabled {
		return nil
	}
	if summary == "" {
		return fmt.Errorf("notify: summary is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	args := []string{"--app-name", n.appName, "--urgency", urgency, summary}
	if body != "" {
		args = append(args, body)
	}

	if err := n.run(ctx, "notify-send", args...); err != nil {
		return fmt.Errorf("notify: send notification: %w", err)
	}
	return nil
}
