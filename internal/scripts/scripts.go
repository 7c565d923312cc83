// Package scripts loads the user script registry from a TOML file and
// executes entries on request from the connected client. The command
// string may reference %SELCAM%, replaced with the current camera name
// at execution time.
package scripts

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SelectedCameraToken is substituted with the current camera name in
// script commands before execution.
const SelectedCameraToken = "%SELCAM%"

// DefaultTimeoutSeconds bounds script runtime when an entry does not set
// its own timeout.
const DefaultTimeoutSeconds = 30

// Script is one user-configured action, shown to the client by label.
type Script struct {
	Label          string `toml:"label"`
	Command        string `toml:"command"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type scriptFile struct {
	Scripts []Script `toml:"script"`
}

// Load parses a script registry file. A missing file yields an empty
// registry rather than an error so the server can run without one.
func Load(path string) ([]Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scripts file: %w", err)
	}

	var file scriptFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scripts file: %w", err)
	}

	for i, s := range file.Scripts {
		if strings.TrimSpace(s.Label) == "" {
			return nil, fmt.Errorf("script %d has no label", i)
		}
		if strings.TrimSpace(s.Command) == "" {
			return nil, fmt.Errorf("script %q has no command", s.Label)
		}
	}

	return file.Scripts, nil
}
