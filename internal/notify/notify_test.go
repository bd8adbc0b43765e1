package notify

import (
	"context"
	"errors"
	"testing"
)

type call struct {
	name string
	args []string
}

func fakeRunner(calls *[]call, err error) runner {
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		return err
	}
}

func TestSendBuildsCommand(t *testing.T) {
	var calls []call
	n := New(true, withRunner(fakeRunner(&calls, nil)))

	if err := n.Send(context.Background(), "Profile applied", "docked"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].name != "notify-send" {
		t.Errorf("unexpected command: %s", calls[0].name)
	}

	want := []string{"--app-name", "hyprpier", "--urgency", "normal", "Profile applied", "docked"}
	if len(calls[0].args) != len(want) {
		t.Fatalf("args = %v, want %v", calls[0].args, want)
	}
	for i, arg := range want {
		if calls[0].args[i] != arg {
			t.Errorf("args[%d] = %q, want %q", i, calls[0].args[i], arg)
		}
	}
}

func TestSendCriticalUrgency(t *testing.T) {
	var calls []call
	n := New(true, withRunner(fakeRunner(&calls, nil)))

	if err := n.SendCritical(context.Background(), "Apply failed", ""); err != nil {
		t.Fatalf("SendCritical: %v", err)
	}

	args := calls[0].args
	found := false
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--urgency" && args[i+1] == UrgencyCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("critical urgency not set: %v", args)
	}
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	var calls []call
	n := New(false, withRunner(fakeRunner(&calls, nil)))

	if err := n.Send(context.Background(), "ignored", ""); err != nil {
		t.Fatalf("Send on disabled notifier: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("disabled notifier must not invoke notify-send, got %d calls", len(calls))
	}
}

func TestSendErrorWrapped(t *testing.T) {
	var calls []call
	base := errors.New("exec failure")
	n := New(true, withRunner(fakeRunner(&calls, base)))

	err := n.Send(context.Background(), "summary", "")
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped runner error, got %v", err)
	}
}

func TestSendRequiresSummary(t *testing.T) {
	var calls []call
	n := New(true, withRunner(fakeRunner(&calls, nil)))

	if err := n.Send(context.Background(), "", "body"); err == nil {
		t.Fatal("expected error for empty summary")
	}
}
