package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyprpier/hyprpier/internal/client"
	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/daemon"
	"github.com/hyprpier/hyprpier/internal/version"
)

var rootCmd *cobra.Command

// OutputFormatter handles output in JSON or human-readable format.
type OutputFormatter struct {
	jsonMode bool
}

func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print outputs data in the appropriate format.
func (f *OutputFormatter) Print(data interface{}) error {
	if f.jsonMode {
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(jsonBytes))
		return nil
	}
	switch v := data.(type) {
	case string:
		fmt.Println(v)
	default:
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	}
	return nil
}

// Success outputs a success message.
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Println(message)
	return nil
}

// daemonClient returns a client for the local daemon socket. It falls
// back to socket discovery when the default path does not exist, which
// matters when invoked from the udev rule outside the user session.
func daemonClient() *client.Client {
	paths := config.GetPaths()
	if _, err := os.Stat(paths.Socket); err == nil {
		return client.New(paths.Socket)
	}
	if socket, err := config.FindSocket(); err == nil {
		return client.New(socket)
	}
	return client.New(paths.Socket)
}

// daemonRunning reports whether a daemon instance holds the lock.
func daemonRunning() (int, bool) {
	return daemon.RunningPID(config.GetPaths().Lock)
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "hyprpier",
		Short: "Hyprpier - Hyprland monitor profiles with Thunderbolt dock detection",
		Long: `Hyprpier manages named monitor layouts for Hyprland and switches
between them automatically when Thunderbolt docks come and go.

Profiles identify monitors by description, so a layout keeps working
when the compositor assigns different port names after a replug.`,
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func main() {
	rootCmd.AddCommand(
		newApplyCmd(),
		newListCmd(),
		newCurrentCmd(),
		newSaveCmd(),
		newDeleteCmd(),
		newLinkCmd(),
		newUnlinkCmd(),
		newThunderboltCmd(),
		newNotifyCmd(),
		newDaemonCmd(),
		newWatchCmd(),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
