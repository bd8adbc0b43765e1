// Package thunderbolt reads Thunderbolt device information directly from
// sysfs, without requiring boltd/boltctl.
package thunderbolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DefaultSysfsPath is the kernel's Thunderbolt bus directory.
const DefaultSysfsPath = "/sys/bus/thunderbolt/devices"

// Device describes one entry on the Thunderbolt bus. UUID is the stable
// identity; DeviceID is the kernel's topological name (e.g. "0-1") and is
// only used for display and ordering.
type Device struct {
	Name     string
	UUID     string
	Vendor   string
	IsHost   bool
	DeviceID string
}

// IsDock reports whether the device is a peripheral rather than the host
// controller.
func (d Device) IsDock() bool {
	return !d.IsHost
}

// ShortUUID returns a truncated UUID for display.
func (d Device) ShortUUID() string {
	if len(d.UUID) <= 8 {
		return d.UUID
	}
	return d.UUID[:8]
}

// Scanner enumerates Thunderbolt devices from a sysfs tree. The zero value
// is not usable; construct with NewScanner.
type Scanner struct {
	root string
}

// NewScanner creates a scanner over the given sysfs root. An empty root
// selects the system default.
func NewScanner(root string) *Scanner {
	if root == "" {
		root = DefaultSysfsPath
	}
	return &Scanner{root: root}
}

// ListDevices returns all Thunderbolt devices sorted by device ID. A missing
// sysfs tree (no Thunderbolt hardware) yields an empty list, not an error.
func (s *Scanner) ListDevices() ([]Device, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("thunderbolt: read sysfs: %w", err)
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()

		// Device entries look like "0-0", "0-1"; skip "domain0" etc.
		if !strings.Contains(name, "-") {
			continue
		}

		devicePath := filepath.Join(s.root, name)
		dev := Device{
			Name:     readAttr(devicePath, "device_name"),
			Vendor:   readAttr(devicePath, "vendor_name"),
			UUID:     readAttr(devicePath, "unique_id"),
			IsHost:   strings.HasSuffix(name, "-0"),
			DeviceID: name,
		}
		if dev.Name == "" {
			dev.Name = "Unknown"
		}

		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DeviceID < devices[j].DeviceID
	})

	return devices, nil
}

// DetectDocks returns connected peripherals that carry a valid UUID.
// Devices without a parseable unique_id cannot be linked and are skipped.
func (s *Scanner) DetectDocks() ([]Device, error) {
	devices, err := s.ListDevices()
	if err != nil {
		return nil, err
	}

	var docks []Device
	for _, dev := range devices {
		if !dev.IsDock() {
			continue
		}
		if _, err := uuid.Parse(dev.UUID); err != nil {
			continue
		}
		docks = append(docks, dev)
	}
	return docks, nil
}

// SecurityMode reads the Thunderbolt security level of domain0. Returns
// "unknown" when the attribute is unavailable.
func (s *Scanner) SecurityMode() string {
	mode := readAttr(filepath.Join(s.root, "domain0"), "security")
	if mode == "" {
		return "unknown"
	}
	return mode
}

// DescribeSecurityMode explains a security mode value for humans.
func DescribeSecurityMode(mode string) string {
	switch mode {
	case "none":
		return "All devices are automatically authorized"
	case "user":
		return "Devices require user authorization"
	case "secure":
		return "Devices require secure key exchange"
	case "dponly":
		return "Only DisplayPort tunneling allowed (no PCIe/USB)"
	default:
		return "Unknown security mode"
	}
}

// readAttr reads a sysfs attribute, returning "" when it does not exist.
func readAttr(devicePath, attr string) string {
	data, err := os.ReadFile(filepath.Join(devicePath, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
