package eventbus

import "time"

// Topic identifies a logical channel on the bus.
type Topic string

const (
	// TopicHotplugTrigger carries normalized hardware-change triggers.
	TopicHotplugTrigger Topic = "hotplug.trigger"
	// TopicDaemonState announces control-loop state transitions.
	TopicDaemonState Topic = "daemon.state"
	// TopicProfileApplied reports the outcome of a resolution pass.
	TopicProfileApplied Topic = "profile.applied"
)

// Source describes which component produced an event.
type Source string

const (
	SourceUdev    Source = "udev"
	SourceCLI     Source = "cli"
	SourceAPI     Source = "api"
	SourceRescan  Source = "rescan"
	SourceStartup Source = "startup"
	SourceDaemon  Source = "daemon"
	SourceUnknown Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       any
}

// TriggerEvent is a normalized hardware-change notification. Duplicate and
// out-of-order triggers are expected; the debouncer collapses them.
type TriggerEvent struct {
	Reason string
	At     time.Time
}

// DaemonState names a control-loop state.
type DaemonState string

const (
	StateIdle       DaemonState = "idle"
	StateDebouncing DaemonState = "debouncing"
	StateResolving  DaemonState = "resolving"
	StateApplying   DaemonState = "applying"
)

// StateChangeEvent announces a control-loop transition.
type StateChangeEvent struct {
	From DaemonState
	To   DaemonState
}

// ApplyOutcome classifies the result of a resolution pass.
type ApplyOutcome string

const (
	OutcomeApplied      ApplyOutcome = "applied"
	OutcomeNoChange     ApplyOutcome = "no_change"
	OutcomeUnresolvable ApplyOutcome = "unresolvable"
	OutcomeFailed       ApplyOutcome = "failed"
	OutcomeSkipped      ApplyOutcome = "skipped"
)

// ApplyResultEvent reports what a resolution pass decided and whether the
// apply succeeded.
type ApplyResultEvent struct {
	Outcome  ApplyOutcome
	Profile  string
	Dock     string
	Fallback bool
	Error    string
}

// Hotplug groups trigger topic descriptors.
var Hotplug = struct {
	Trigger TopicDef[TriggerEvent]
}{
	Trigger: NewTopicDef[TriggerEvent](TopicHotplugTrigger),
}

// Daemon groups control-loop topic descriptors.
var Daemon = struct {
	State   TopicDef[StateChangeEvent]
	Applied TopicDef[ApplyResultEvent]
}{
	State:   NewTopicDef[StateChangeEvent](TopicDaemonState),
	Applied: NewTopicDef[ApplyResultEvent](TopicProfileApplied),
}
