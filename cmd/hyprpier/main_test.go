package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/eventbus"
)

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSummarizeEvent(t *testing.T) {
	tests := []struct {
		name  string
		event api.Event
		want  string
	}{
		{
			name: "trigger",
			event: api.Event{
				Topic:   string(eventbus.TopicHotplugTrigger),
				Payload: mustMarshal(t, eventbus.TriggerEvent{Reason: "udev add", At: time.Now()}),
			},
			want: "udev add",
		},
		{
			name: "state change",
			event: api.Event{
				Topic:   string(eventbus.TopicDaemonState),
				Payload: mustMarshal(t, eventbus.StateChangeEvent{From: eventbus.StateIdle, To: eventbus.StateResolving}),
			},
			want: "idle -> resolving",
		},
		{
			name: "apply success",
			event: api.Event{
				Topic:   string(eventbus.TopicProfileApplied),
				Payload: mustMarshal(t, eventbus.ApplyResultEvent{Outcome: eventbus.OutcomeApplied, Profile: "docked"}),
			},
			want: "applied docked",
		},
		{
			name: "apply failure includes error",
			event: api.Event{
				Topic:   string(eventbus.TopicProfileApplied),
				Payload: mustMarshal(t, eventbus.ApplyResultEvent{Outcome: eventbus.OutcomeFailed, Profile: "docked", Error: "boom"}),
			},
			want: "failed docked (boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarizeEvent(tt.event); got != tt.want {
				t.Errorf("summarizeEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeEventUnknownTopicFallsBackToRawPayload(t *testing.T) {
	event := api.Event{Topic: "mystery.topic", Payload: json.RawMessage(`{"x":1}`)}
	if got := summarizeEvent(event); !strings.Contains(got, `"x":1`) {
		t.Errorf("expected raw payload fallback, got %q", got)
	}
}

func TestShortUUID(t *testing.T) {
	if got := shortUUID("c2030000-0070-7f18-23d0-4d9b85f0b8c1"); got != "c2030000" {
		t.Errorf("shortUUID = %q", got)
	}
	if got := shortUUID("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}
