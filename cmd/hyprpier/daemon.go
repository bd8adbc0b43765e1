package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/client"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/procutil"
	"github.com/hyprpier/hyprpier/internal/version"
)

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Inspect and control the hyprpierd daemon",
	}

	statusCmd := &cobra.Command{
		Use:           "status",
		Short:         "Show daemon status",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          daemonStatus,
	}

	stopCmd := &cobra.Command{
		Use:           "stop",
		Short:         "Stop the running daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          daemonStop,
	}

	daemonCmd.AddCommand(statusCmd, stopCmd)
	return daemonCmd
}

func daemonStatus(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)

	status, err := daemonClient().Status(cmd.Context())
	if err != nil {
		if errors.Is(err, client.ErrDaemonNotRunning) {
			if formatter.jsonMode {
				return formatter.Print(map[string]interface{}{"running": false})
			}
			fmt.Println("Daemon is not running")
			return nil
		}
		return err
	}

	if warning := version.CheckVersionMismatch(status.Version); warning != "" {
		fmt.Fprintln(os.Stderr, warning)
	}

	if formatter.jsonMode {
		return formatter.Print(status)
	}

	fmt.Printf("Daemon running (pid %d, version %s, up %s)\n",
		status.PID, version.FormatVersion(status.Version), (time.Duration(status.UptimeSeconds) * time.Second).String())
	fmt.Printf("State:   %s\n", status.State)
	if status.ActiveProfile != "" {
		fmt.Printf("Active:  %s\n", status.ActiveProfile)
	}
	if status.UndockedProfile != "" {
		fmt.Printf("Undocked profile: %s\n", status.UndockedProfile)
	}
	if status.SecurityMode != "" {
		fmt.Printf("Thunderbolt security: %s\n", status.SecurityMode)
	}

	if len(status.Docks) == 0 {
		fmt.Println("Docks:   none connected")
	} else {
		fmt.Println("Docks:")
		for _, dock := range status.Docks {
			line := "  " + shortUUID(dock.UUID)
			if dock.Name != "" {
				line += "  " + dock.Name
			}
			if dock.Profile != "" {
				line += "  -> " + dock.Profile
			}
			fmt.Println(line)
		}
	}

	if len(status.Monitors) > 0 {
		fmt.Println("Monitors:")
		for _, m := range status.Monitors {
			fmt.Printf("  %s\n", m)
		}
	}
	return nil
}

func daemonStop(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)

	err := daemonClient().Shutdown(cmd.Context())
	if err == nil {
		return formatter.Success("Daemon stopping", nil)
	}
	if !errors.Is(err, client.ErrDaemonNotRunning) {
		return err
	}

	// Socket unreachable but the lock may still name a live process.
	pid, running := daemonRunning()
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}
	if err := procutil.TerminateByPID(pid); err != nil {
		return fmt.Errorf("terminate daemon (pid %d): %w", pid, err)
	}
	return formatter.Success(fmt.Sprintf("Sent SIGTERM to daemon (pid %d)", pid), nil)
}

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "notify",
		Short:         "Tell the daemon hardware may have changed (used by the udev rule)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")

			err := daemonClient().Notify(cmd.Context(), reason)
			if err == nil {
				return nil
			}
			// The udev rule fires whether or not the daemon is up; a
			// missing daemon is not an error worth failing the rule for.
			if errors.Is(err, client.ErrDaemonNotRunning) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("reason", "udev event", "Trigger reason recorded in the journal")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "watch",
		Short:         "Stream daemon events until interrupted",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          watchEvents,
	}
}

func watchEvents(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)

	stream, err := daemonClient().Events(cmd.Context())
	if err != nil {
		return err
	}
	defer stream.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		stream.Close()
	}()

	for {
		event, err := stream.Next()
		if err != nil {
			return nil // stream closed (interrupt or daemon shutdown)
		}

		if formatter.jsonMode {
			if err := formatter.Print(event); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("%s  %-18s %-8s %s\n",
			event.Timestamp.Local().Format("15:04:05"),
			event.Topic, event.Source, summarizeEvent(event))
	}
}

// summarizeEvent renders a one-line human summary of an event payload.
func summarizeEvent(event api.Event) string {
	switch eventbus.Topic(event.Topic) {
	case eventbus.TopicHotplugTrigger:
		var payload eventbus.TriggerEvent
		if json.Unmarshal(event.Payload, &payload) == nil {
			return payload.Reason
		}
	case eventbus.TopicDaemonState:
		var payload eventbus.StateChangeEvent
		if json.Unmarshal(event.Payload, &payload) == nil {
			return fmt.Sprintf("%s -> %s", payload.From, payload.To)
		}
	case eventbus.TopicProfileApplied:
		var payload eventbus.ApplyResultEvent
		if json.Unmarshal(event.Payload, &payload) == nil {
			summary := string(payload.Outcome)
			if payload.Profile != "" {
				summary += " " + payload.Profile
			}
			if payload.Error != "" {
				summary += " (" + payload.Error + ")"
			}
			return summary
		}
	}
	return string(event.Payload)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent daemon events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          showHistory,
	}
	cmd.Flags().Int("limit", 0, "Maximum number of entries (0 = daemon default)")
	return cmd
}

func showHistory(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := daemonClient().History(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if formatter.jsonMode {
		return formatter.Print(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No recorded events")
		return nil
	}

	w := newTabWriter()
	fmt.Fprintln(w, "TIME\tKIND\tOUTCOME\tPROFILE\tDOCK\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Kind, e.Outcome, e.Profile, shortUUID(e.Dock), e.Detail)
	}
	return w.Flush()
}
