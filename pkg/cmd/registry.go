// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/registry"
)

// NewRegistry registers the built-in actions and then any plugins found under
// pluginsPath, which may replace built-ins with the same id.
func NewRegistry(log *slog.Logger, pluginsPath string, deps registry.Dependencies) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	reg.RegisterDefaultActions(deps)

	if pluginsPath != "" {
		err := reg.LoadActionPlugins(pluginsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load action plugins: %w", err)
		}
	}

	return reg, nil
}
