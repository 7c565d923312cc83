// Package cmd holds cobra subcommands attached to the humacli root.
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shycats/vcam/internal/scripts"
)

// ValidateCmd checks the runtime prerequisites: the FFmpeg binary, its
// libx264 encoder, and the scripts config file.
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate FFmpeg availability and the scripts config",
	Long:  `Checks that the configured FFmpeg binary runs, that it provides the libx264 encoder required for streaming, and that the scripts file parses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ffmpegBin, _ := cmd.Flags().GetString("ffmpeg")
		scriptsFile, _ := cmd.Flags().GetString("scripts-file")

		failed := false
		if err := validateFFmpeg(ffmpegBin); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL ffmpeg: %v\n", err)
			failed = true
		} else {
			fmt.Printf("OK   ffmpeg: %s\n", ffmpegBin)
		}

		if err := validateScripts(scriptsFile); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL scripts: %v\n", err)
			failed = true
		} else {
			fmt.Printf("OK   scripts: %s\n", scriptsFile)
		}

		if failed {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func init() {
	ValidateCmd.Flags().String("ffmpeg", "ffmpeg", "FFmpeg binary to validate")
	ValidateCmd.Flags().String("scripts-file", "scripts.toml", "Scripts config file to validate")
}

func validateFFmpeg(bin string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("binary not found: %w", err)
	}

	if out, err := exec.Command(bin, "-version").CombinedOutput(); err != nil {
		return fmt.Errorf("-version failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	out, err := exec.Command(bin, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return fmt.Errorf("-encoders failed: %w", err)
	}
	if !strings.Contains(string(out), "libx264") {
		return fmt.Errorf("libx264 encoder not available")
	}
	return nil
}

func validateScripts(path string) error {
	entries, err := scripts.Load(path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("note: no scripts defined in %s\n", path)
	}
	return nil
}
