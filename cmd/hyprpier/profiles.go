package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/hypr"
	"github.com/hyprpier/hyprpier/internal/profile"
	"github.com/hyprpier/hyprpier/internal/resolver"
	"github.com/hyprpier/hyprpier/internal/thunderbolt"
)

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apply [profile]",
		Short:         "Apply a monitor profile (or resolve one with --auto)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          applyProfile,
	}
	cmd.Flags().Bool("auto", false, "Resolve the profile from connected hardware")
	cmd.Flags().Bool("no-runtime", false, "Only write monitors.conf, skip live reconfiguration")
	return cmd
}

func applyProfile(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	auto, _ := cmd.Flags().GetBool("auto")
	noRuntime, _ := cmd.Flags().GetBool("no-runtime")

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" && !auto {
		return fmt.Errorf("profile name or --auto required")
	}
	if name != "" && auto {
		return fmt.Errorf("profile name and --auto are mutually exclusive")
	}

	// Prefer the daemon so applies serialise with hotplug handling.
	if _, running := daemonRunning(); running && !noRuntime {
		result, err := daemonClient().Apply(cmd.Context(), api.ApplyRequest{Profile: name, Auto: auto})
		if err != nil {
			return err
		}
		return printApplyResult(formatter, result)
	}

	result, err := applyLocally(cmd.Context(), name, auto, noRuntime)
	if err != nil {
		return err
	}
	return printApplyResult(formatter, result)
}

// applyLocally runs the apply pipeline in-process for use without a
// daemon: resolve (when auto), remap names, write config, reconfigure.
func applyLocally(ctx context.Context, name string, auto, noRuntime bool) (api.ApplyResult, error) {
	paths := config.GetPaths()
	settings, err := config.LoadSettings(paths.Settings)
	if err != nil {
		return api.ApplyResult{}, err
	}

	store := profile.NewStore(paths)
	metaStore := profile.NewMetadataStore(paths.Metadata)

	if auto {
		resolved, err := resolveLocally(store, metaStore)
		if err != nil {
			return api.ApplyResult{}, err
		}
		if resolved.Kind == resolver.KindNoChange {
			return api.ApplyResult{Outcome: "no_change", Profile: resolved.Profile}, nil
		}
		if resolved.Kind == resolver.KindUnresolvable {
			return api.ApplyResult{Outcome: "unresolvable", Error: resolved.Reason}, nil
		}
		if resolved.Profile == "" {
			return api.ApplyResult{Outcome: "skipped"}, nil
		}
		name = resolved.Profile
	}

	p, err := store.Load(name)
	if err != nil {
		return api.ApplyResult{}, err
	}

	ctrl := hypr.NewController(paths.MonitorsConf)
	applyCtx, cancel := context.WithTimeout(ctx, settings.ApplyTimeout)
	defer cancel()

	if ctrl.IsRunning() {
		if err := ctrl.ResolveNames(applyCtx, p); err != nil {
			return api.ApplyResult{}, err
		}
	}
	if err := ctrl.WriteConfig(p); err != nil {
		return api.ApplyResult{}, err
	}
	if !noRuntime {
		if !ctrl.IsRunning() {
			return api.ApplyResult{}, fmt.Errorf("hyprland is not running (use --no-runtime to only write the config)")
		}
		if err := ctrl.ApplyRuntime(applyCtx, p); err != nil {
			return api.ApplyResult{}, err
		}
	}

	if err := metaStore.Update(func(m *profile.Metadata) error {
		m.SetActive(name)
		return nil
	}); err != nil {
		return api.ApplyResult{}, err
	}

	return api.ApplyResult{Outcome: "applied", Profile: name}, nil
}

func resolveLocally(store *profile.Store, metaStore *profile.MetadataStore) (resolver.Action, error) {
	meta, err := metaStore.Get()
	if err != nil {
		return resolver.Action{}, err
	}

	docks, err := thunderbolt.NewScanner("").DetectDocks()
	if err != nil {
		return resolver.Action{}, fmt.Errorf("scan thunderbolt devices: %w", err)
	}
	uuids := make([]string, 0, len(docks))
	for _, dock := range docks {
		uuids = append(uuids, dock.UUID)
	}

	return resolver.Resolve(uuids, meta, store.Exists), nil
}

func printApplyResult(formatter *OutputFormatter, result api.ApplyResult) error {
	if formatter.jsonMode {
		return formatter.Print(result)
	}
	switch result.Outcome {
	case "applied":
		fmt.Printf("Applied profile %q\n", result.Profile)
	case "no_change":
		fmt.Printf("Profile %q already active\n", result.Profile)
	case "skipped":
		fmt.Println("Nothing to apply (no matching dock and no undocked profile)")
	case "unresolvable":
		return fmt.Errorf("cannot resolve a profile: %s", result.Error)
	default:
		return fmt.Errorf("apply failed: %s", result.Error)
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listProfiles,
	}
}

func listProfiles(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	paths := config.GetPaths()

	names, err := profile.NewStore(paths).List()
	if err != nil {
		return err
	}
	meta, err := profile.NewMetadataStore(paths.Metadata).Get()
	if err != nil {
		return err
	}

	if formatter.jsonMode {
		type entry struct {
			Name     string `json:"name"`
			Active   bool   `json:"active"`
			Dock     string `json:"dock,omitempty"`
			Undocked bool   `json:"undocked,omitempty"`
		}
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			e := entry{Name: name, Active: name == meta.ActiveProfile, Undocked: name == meta.UndockedProfile}
			if dock, ok := meta.ProfileDock(name); ok {
				e.Dock = dock
			}
			entries = append(entries, e)
		}
		return formatter.Print(entries)
	}

	if len(names) == 0 {
		fmt.Println("No profiles saved yet. Use 'hyprpier save <name>' to capture the current layout.")
		return nil
	}

	for _, name := range names {
		var markers []string
		if name == meta.ActiveProfile {
			markers = append(markers, "active")
		}
		if dock, ok := meta.ProfileDock(name); ok {
			markers = append(markers, "dock "+shortUUID(dock))
		}
		if name == meta.UndockedProfile {
			markers = append(markers, "undocked")
		}
		if len(markers) > 0 {
			fmt.Printf("  %s (%s)\n", name, strings.Join(markers, ", "))
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "current",
		Short:         "Show the active profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			meta, err := profile.NewMetadataStore(config.GetPaths().Metadata).Get()
			if err != nil {
				return err
			}
			if formatter.jsonMode {
				return formatter.Print(map[string]string{"active_profile": meta.ActiveProfile})
			}
			if meta.ActiveProfile == "" {
				fmt.Println("No profile active")
				return nil
			}
			fmt.Println(meta.ActiveProfile)
			return nil
		},
	}
}

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "save <name>",
		Short:         "Save the current monitor layout as a profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          saveProfile,
	}
	cmd.Flags().String("description", "", "Free-form profile description")
	cmd.Flags().Bool("activate", false, "Mark the saved profile as active")
	return cmd
}

func saveProfile(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	name := args[0]
	description, _ := cmd.Flags().GetString("description")
	activate, _ := cmd.Flags().GetBool("activate")

	paths := config.GetPaths()
	ctrl := hypr.NewController(paths.MonitorsConf)
	if !ctrl.IsRunning() {
		return fmt.Errorf("hyprland is not running, cannot capture the current layout")
	}

	monitors, err := ctrl.Monitors(cmd.Context())
	if err != nil {
		return fmt.Errorf("query monitors: %w", err)
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no monitors reported by the compositor")
	}

	p := &profile.Profile{Name: name, Description: description}
	for _, m := range monitors {
		p.Monitors = append(p.Monitors, profile.MonitorSpec{
			Name:        m.Name,
			Description: m.Description,
			Enabled:     !m.Disabled,
			Resolution:  fmt.Sprintf("%dx%d", m.Width, m.Height),
			RefreshRate: m.RefreshRate,
			Position:    profile.Position{X: m.X, Y: m.Y},
			Scale:       m.Scale,
			Transform:   m.Transform,
		})
	}
	sort.Slice(p.Monitors, func(i, j int) bool {
		return p.Monitors[i].Name < p.Monitors[j].Name
	})

	if err := profile.NewStore(paths).Save(p); err != nil {
		return err
	}

	if activate {
		if err := profile.NewMetadataStore(paths.Metadata).Update(func(m *profile.Metadata) error {
			m.SetActive(name)
			return nil
		}); err != nil {
			return err
		}
	}

	return formatter.Success(fmt.Sprintf("Saved profile %q (%d monitors)", name, len(p.Monitors)),
		map[string]interface{}{"profile": name, "monitors": len(p.Monitors)})
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			name := args[0]
			paths := config.GetPaths()

			if err := profile.NewStore(paths).Delete(name); err != nil {
				return err
			}

			// Drop any links pointing at the removed profile.
			if err := profile.NewMetadataStore(paths.Metadata).Update(func(m *profile.Metadata) error {
				if m.ActiveProfile == name {
					m.SetActive("")
				}
				if m.UndockedProfile == name {
					m.SetUndocked("")
				}
				if dock, ok := m.ProfileDock(name); ok {
					m.UnlinkDock(dock)
				}
				return nil
			}); err != nil {
				return err
			}

			return formatter.Success(fmt.Sprintf("Deleted profile %q", name),
				map[string]interface{}{"profile": name})
		},
	}
}

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "link <dock-uuid|undocked> <profile>",
		Short:         "Link a profile to a dock (or to the undocked state)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          linkProfile,
	}
	return cmd
}

func linkProfile(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	target, name := args[0], args[1]
	paths := config.GetPaths()

	if !profile.NewStore(paths).Exists(name) {
		return profile.NotFoundError{Name: name}
	}

	metaStore := profile.NewMetadataStore(paths.Metadata)

	if target == "undocked" {
		if err := metaStore.Update(func(m *profile.Metadata) error {
			m.SetUndocked(name)
			return nil
		}); err != nil {
			return err
		}
		return formatter.Success(fmt.Sprintf("Profile %q will apply when no dock is connected", name),
			map[string]interface{}{"profile": name, "undocked": true})
	}

	uuid, err := expandDockUUID(target)
	if err != nil {
		return err
	}
	if err := metaStore.Update(func(m *profile.Metadata) error {
		m.LinkDock(uuid, name)
		return nil
	}); err != nil {
		return err
	}
	return formatter.Success(fmt.Sprintf("Linked dock %s to profile %q", shortUUID(uuid), name),
		map[string]interface{}{"dock": uuid, "profile": name})
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "unlink <dock-uuid|undocked>",
		Short:         "Remove a dock-to-profile link",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			target := args[0]
			metaStore := profile.NewMetadataStore(config.GetPaths().Metadata)

			if target == "undocked" {
				if err := metaStore.Update(func(m *profile.Metadata) error {
					m.SetUndocked("")
					return nil
				}); err != nil {
					return err
				}
				return formatter.Success("Cleared undocked profile", nil)
			}

			uuid, err := expandDockUUID(target)
			if err != nil {
				return err
			}
			if err := metaStore.Update(func(m *profile.Metadata) error {
				m.UnlinkDock(uuid)
				return nil
			}); err != nil {
				return err
			}
			return formatter.Success(fmt.Sprintf("Unlinked dock %s", shortUUID(uuid)),
				map[string]interface{}{"dock": uuid})
		},
	}
}

// expandDockUUID accepts a full UUID or an unambiguous prefix of a
// currently connected dock.
func expandDockUUID(input string) (string, error) {
	docks, err := thunderbolt.NewScanner("").DetectDocks()
	if err != nil {
		return "", fmt.Errorf("scan thunderbolt devices: %w", err)
	}

	var matches []string
	for _, dock := range docks {
		if dock.UUID == input {
			return input, nil
		}
		if strings.HasPrefix(dock.UUID, input) {
			matches = append(matches, dock.UUID)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// Allow linking docks that are not currently connected.
		if len(input) >= 8 {
			return input, nil
		}
		return "", fmt.Errorf("no connected dock matches %q (pass the full UUID for an offline dock)", input)
	default:
		return "", fmt.Errorf("dock prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

func shortUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}
