package version

import (
	"strings"
	"testing"
)

func TestStringReflectsBuildVersion(t *testing.T) {
	cleanup := ForTesting("1.2.3-test")
	t.Cleanup(cleanup)

	if got := String(); got != "1.2.3-test" {
		t.Fatalf("expected version 1.2.3-test, got %s", got)
	}
}

func TestCheckVersionMismatch(t *testing.T) {
	tests := []struct {
		name          string
		clientVersion string
		daemonVersion string
		wantWarning   bool
	}{
		{"same version no warning", "0.3.0", "0.3.0", false},
		{"different version warning", "0.3.0", "0.2.0", true},
		{"daemon dev skip", "0.3.0", "dev", false},
		{"client dev skip", "dev", "0.3.0", false},
		{"empty daemon version skip", "0.3.0", "", false},
		{"untagged sentinel skip", "0.0.0", "0.3.0", false},
		{"git describe suffix stripped", "0.3.0-5-gabcdef", "0.3.0", false},
		{"v prefix normalized", "v0.3.0", "0.3.0", false},
		{"v prefix different version", "v0.3.0", "v0.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := ForTesting(tt.clientVersion)
			t.Cleanup(cleanup)

			got := CheckVersionMismatch(tt.daemonVersion)
			if tt.wantWarning && got == "" {
				t.Error("expected warning string, got empty")
			}
			if !tt.wantWarning && got != "" {
				t.Errorf("expected no warning, got %q", got)
			}
			if tt.wantWarning && !strings.HasPrefix(got, "WARNING: hyprpier ") {
				t.Errorf("warning %q missing expected prefix", got)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v0.3.0", "0.3.0"},
		{"0.3.0", "0.3.0"},
		{"0.3.0-5-gabcdef", "0.3.0"},
		{"v0.3.0-10-g1234567", "0.3.0"},
		{"0.3.0-rc1", "0.3.0-rc1"},
		{"dev", "dev"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeVersion(tt.input); got != tt.want {
				t.Errorf("normalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.3.0", "v0.3.0"},
		{"v0.3.0", "v0.3.0"},
		{"dev", "dev"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatVersion(tt.input); got != tt.want {
				t.Errorf("FormatVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
