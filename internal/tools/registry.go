// Package tools holds the table of built-in tool factories. Tool packages add
// themselves from init; the app registers every entry with the controller.
package tools

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// Options carry process settings that built-in tools may need.
type Options struct {
	BallastMB int
}

// Builder returns the factory for one built-in tool.
type Builder func(logger *slog.Logger, opts Options) tool.Factory

var (
	mu       sync.RWMutex
	builders = map[string]Builder{}
)

// Register adds a builder under name, replacing any previous one.
func Register(name string, b Builder) {
	mu.Lock()
	defer mu.Unlock()

	builders[name] = b
}

// Names returns registered tool names in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	return slices.Sorted(maps.Keys(builders))
}

// Factories builds a factory for every registered tool.
func Factories(logger *slog.Logger, opts Options) map[string]tool.Factory {
	mu.RLock()
	defer mu.RUnlock()

	out := make(map[string]tool.Factory, len(builders))
	for name, b := range builders {
		out[name] = b(logger.With("tool", name), opts)
	}

	return out
}
