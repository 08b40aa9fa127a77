package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/jarvis-ci/jarvis/internal"
)

// Directory holding user configuration.
//
//	Linux:   $XDG_CONFIG_HOME/jarvis or ~/.config/jarvis
//	macOS:   ~/Library/Application Support/jarvis
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, internal.Name)
}

// Default path to the configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/jarvis/config.yaml
//	macOS:   ~/Library/Application Support/jarvis/config.yaml
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
