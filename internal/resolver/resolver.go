// Package resolver decides which profile should be active for a given
// hardware state. Resolve is a pure function: no I/O, no hidden state.
package resolver

import (
	"fmt"
	"sort"

	"github.com/hyprpier/hyprpier/internal/profile"
)

// Kind tags the outcome of a resolution.
type Kind string

const (
	// KindNoChange means the resolved profile is already active.
	KindNoChange Kind = "no_change"
	// KindApply means a dock-linked profile should be applied.
	KindApply Kind = "apply"
	// KindApplyFallback means the undocked fallback applies (Profile may be
	// empty when no fallback is configured).
	KindApplyFallback Kind = "apply_fallback"
	// KindUnresolvable means metadata references a profile that does not exist.
	KindUnresolvable Kind = "unresolvable"
)

// Action is the resolved outcome prior to any side effect.
type Action struct {
	Kind    Kind
	Profile string // profile to apply, when Kind is KindApply/KindApplyFallback
	Dock    string // dock UUID that matched, when Kind is KindApply
	Reason  string // human-readable explanation, set for KindUnresolvable
}

// Resolve maps attached docks plus metadata to an action. Docks are
// considered in lexicographic UUID order and the first linked dock wins;
// this makes the "first matching dock" policy deterministic regardless of
// enumeration order. exists reports whether a profile is present in the
// store, letting broken links degrade to Unresolvable instead of a crash.
func Resolve(docks []string, meta profile.Metadata, exists func(name string) bool) Action {
	ordered := append([]string(nil), docks...)
	sort.Strings(ordered)

	for _, uuid := range ordered {
		name, ok := meta.DockProfile(uuid)
		if !ok {
			continue
		}
		if !exists(name) {
			return Action{
				Kind:   KindUnresolvable,
				Dock:   uuid,
				Reason: fmt.Sprintf("dock %s is linked to missing profile %q", uuid, name),
			}
		}
		if name == meta.ActiveProfile {
			return Action{Kind: KindNoChange, Profile: name, Dock: uuid}
		}
		return Action{Kind: KindApply, Profile: name, Dock: uuid}
	}

	// No dock attached, or none of the attached docks is linked.
	fallback := meta.UndockedProfile
	if fallback == "" {
		return Action{Kind: KindApplyFallback}
	}
	if !exists(fallback) {
		return Action{
			Kind:   KindUnresolvable,
			Reason: fmt.Sprintf("undocked fallback references missing profile %q", fallback),
		}
	}
	if fallback == meta.ActiveProfile {
		return Action{Kind: KindNoChange, Profile: fallback}
	}
	return Action{Kind: KindApplyFallback, Profile: fallback}
}
