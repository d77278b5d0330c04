package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/skillcoder/toolmanager/internal/logic/controller"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

const filePerm = 0o644

type store struct {
	logger *slog.Logger
	path   string
	// mu serializes writers so concurrent saves never interleave.
	mu sync.Mutex
}

// New creates a JSON file config store at path.
func New(logger *slog.Logger, path string) controller.ConfigStore {
	return &store{
		logger: logger.With("component", "config-store", "path", path),
		path:   path,
	}
}

var _ controller.ConfigStore = (*store)(nil)

// rawSettingsFile defers tool decoding so missing fields keep their defaults.
type rawSettingsFile struct {
	AutoScalingEnabled *bool                      `json:"auto_scaling_enabled"`
	Tools              map[string]json.RawMessage `json:"tools"`
}

// Load reads the settings file. A missing file yields empty settings with
// auto-scaling enabled. Tool entries that fail validation are skipped.
func (s *store) Load(ctx context.Context) (tool.Settings, error) {
	settings := tool.Settings{
		AutoScalingEnabled: true,
		Tools:              make(map[string]tool.Config),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.InfoContext(ctx, "settings file not found, starting empty")

			return settings, nil
		}

		return tool.Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var raw rawSettingsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return tool.Settings{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if raw.AutoScalingEnabled != nil {
		settings.AutoScalingEnabled = *raw.AutoScalingEnabled
	}

	for name, msg := range raw.Tools {
		entry := toToolFile(tool.DefaultConfig(name))

		if err := json.Unmarshal(msg, &entry); err != nil {
			return tool.Settings{}, fmt.Errorf("%w: tool %s: %w", ErrDecode, name, err)
		}

		cfg := toDomainConfig(name, entry)
		if err := cfg.Validate(); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid tool config", "tool", name, "reason", err)

			continue
		}

		settings.Tools[name] = cfg
	}

	return settings, nil
}

// Save rewrites the whole file through a temp file and rename, so readers
// never see a partial document.
func (s *store) Save(ctx context.Context, settings tool.Settings) error {
	doc := settingsFile{
		AutoScalingEnabled: settings.AutoScalingEnabled,
		Tools:              make(map[string]toolFile, len(settings.Tools)),
	}

	for name, cfg := range settings.Tools {
		doc.Tools[name] = toToolFile(cfg)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrWrite, err)
	}

	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.logger.DebugContext(ctx, "settings saved", "tools", len(doc.Tools))

	return nil
}

func (s *store) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
