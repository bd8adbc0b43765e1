package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyprpier/hyprpier/internal/thunderbolt"
)

func newThunderboltCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "thunderbolt",
		Short:         "Inspect Thunderbolt devices and security mode",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          showThunderbolt,
	}
	cmd.Flags().Bool("list", false, "List all Thunderbolt devices, not only docks")
	cmd.Flags().Bool("status", false, "Show only the controller security mode")
	return cmd
}

func showThunderbolt(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)
	listAll, _ := cmd.Flags().GetBool("list")
	statusOnly, _ := cmd.Flags().GetBool("status")

	scanner := thunderbolt.NewScanner("")
	mode := scanner.SecurityMode()

	if statusOnly {
		if formatter.jsonMode {
			return formatter.Print(map[string]string{
				"security_mode": mode,
				"description":   thunderbolt.DescribeSecurityMode(mode),
			})
		}
		fmt.Printf("Security mode: %s (%s)\n", mode, thunderbolt.DescribeSecurityMode(mode))
		return nil
	}

	var devices []thunderbolt.Device
	var err error
	if listAll {
		devices, err = scanner.ListDevices()
	} else {
		devices, err = scanner.DetectDocks()
	}
	if err != nil {
		return fmt.Errorf("scan thunderbolt devices: %w", err)
	}

	if formatter.jsonMode {
		return formatter.Print(map[string]interface{}{
			"security_mode": mode,
			"devices":       devices,
		})
	}

	fmt.Printf("Security mode: %s (%s)\n", mode, thunderbolt.DescribeSecurityMode(mode))
	if len(devices) == 0 {
		if listAll {
			fmt.Println("No Thunderbolt devices found")
		} else {
			fmt.Println("No docks connected")
		}
		return nil
	}

	w := newTabWriter()
	fmt.Fprintln(w, "UUID\tNAME\tVENDOR\tROLE")
	for _, dev := range devices {
		role := "peripheral"
		if dev.IsHost {
			role = "host"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", dev.ShortUUID(), dev.Name, dev.Vendor, role)
	}
	return w.Flush()
}
