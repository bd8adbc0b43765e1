package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyprpier/hyprpier/internal/config"
	"github.com/hyprpier/hyprpier/internal/daemon"
	"github.com/hyprpier/hyprpier/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hyprpierd",
		Short:         "Hyprpier daemon - watches dock hotplug and applies monitor profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	if err := config.EnsureDirs(paths); err != nil {
		return fmt.Errorf("failed to prepare directories: %w", err)
	}

	if err := setupLogging(paths); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
	}

	if pid, running := daemon.RunningPID(paths.Lock); running {
		return fmt.Errorf("daemon is already running (pid %d)", pid)
	}

	settings, err := config.LoadSettings(paths.Settings)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	d, err := daemon.New(daemon.Options{Paths: paths, Settings: settings})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start()
	}()

	log.Printf("Hyprpier daemon started (PID: %d)", os.Getpid())
	log.Printf("Unix socket: %s", paths.Socket)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %s, shutting down...", sig)
		d.Shutdown()
		if err := <-errChan; err != nil && !errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
	case err := <-errChan:
		if err != nil {
			log.Printf("Daemon error: %v", err)
			return err
		}
	}

	log.Println("Daemon stopped")
	return nil
}

func setupLogging(paths config.Paths) error {
	if err := os.MkdirAll(paths.Logs, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	logPath := filepath.Join(paths.Logs, "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	multi := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multi)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Printf("=== Hyprpier Daemon Starting (PID: %d) ===", os.Getpid())
	log.Printf("Log file: %s", logPath)
	return nil
}
