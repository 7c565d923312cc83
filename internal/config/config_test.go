package config

import (
	"os"
	"reflect"
	"testing"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Port        int      `toml:"server.port" env:"PORT"`
	Platform    string   `toml:"server.platform" env:"PLATFORM"`
	Announce    bool     `toml:"announce.enabled" env:"ANNOUNCE"`
	FFmpeg      string   `toml:"streaming.ffmpeg" env:"FFMPEG"`
	ExtraLabels []string `toml:"scripts.extra_labels" env:"EXTRA_LABELS"`
}

func writeTempTOML(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadFromTOML(t *testing.T) {
	path := writeTempTOML(t, `
[server]
port = 24000
platform = "Blender"

[announce]
enabled = true

[streaming]
ffmpeg = "/usr/local/bin/ffmpeg"

[scripts]
extra_labels = ["one", "two"]
`)

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if opts.Port != 24000 {
		t.Errorf("Port = %d, want 24000", opts.Port)
	}
	if opts.Platform != "Blender" {
		t.Errorf("Platform = %q, want Blender", opts.Platform)
	}
	if !opts.Announce {
		t.Error("Announce = false, want true")
	}
	if opts.FFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("FFmpeg = %q", opts.FFmpeg)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(opts.ExtraLabels, want) {
		t.Errorf("ExtraLabels = %v, want %v", opts.ExtraLabels, want)
	}
}

func TestLoadEnvOverridesTOML(t *testing.T) {
	path := writeTempTOML(t, `
[server]
port = 24000
platform = "Blender"
`)

	t.Setenv("VCAM_PORT", "23354")

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if opts.Port != 23354 {
		t.Errorf("Port = %d, want env override 23354", opts.Port)
	}
	if opts.Platform != "Blender" {
		t.Errorf("Platform = %q, want TOML value Blender", opts.Platform)
	}
}

func TestLoadEnvSliceAndBool(t *testing.T) {
	t.Setenv("VCAM_EXTRA_LABELS", " a , b , c ")
	t.Setenv("VCAM_ANNOUNCE", "false")

	opts := &testOptions{Announce: true}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(opts.ExtraLabels, want) {
		t.Errorf("ExtraLabels = %v, want %v", opts.ExtraLabels, want)
	}
	if opts.Announce {
		t.Error("Announce = true, want env override false")
	}
}

func TestLoadMissingFile(t *testing.T) {
	opts := &testOptions{Config: "does_not_exist.toml"}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load should not fail for a missing file: %v", err)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeTempTOML(t, "[server\nbroken =")

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err == nil {
		t.Fatal("Load should fail for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Port", "port"},
		{"ScriptsFile", "scripts-file"},
		{"LoggingLevel", "logging-level"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.in); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNestedValue(t *testing.T) {
	data := map[string]any{
		"server": map[string]any{
			"port": int64(23354),
			"tls": map[string]any{
				"enabled": true,
			},
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"server.port", int64(23354)},
		{"server.tls.enabled", true},
		{"missing", nil},
		{"server.missing", nil},
		{"root.not_a_table", nil},
	}

	for _, tt := range tests {
		if got := nestedValue(data, tt.path); got != tt.want {
			t.Errorf("nestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfigModuleLevels(t *testing.T) {
	path := writeTempTOML(t, `
[logging]
level = "info"
format = "json"
streaming = "debug"
announce = "warn"
`)

	cfg := LoadLoggingConfig(path)

	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.Modules["streaming"] != "debug" {
		t.Errorf("Modules[streaming] = %q, want debug", cfg.Modules["streaming"])
	}
	if cfg.Modules["announce"] != "warn" {
		t.Errorf("Modules[announce] = %q, want warn", cfg.Modules["announce"])
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
}
