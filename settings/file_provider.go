package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dropstream/drops-miner/logging"
)

// Provider exposes the current settings snapshot. Implementations must
// be safe for concurrent readers.
type Provider interface {
	Current() Settings
}

// Static is a fixed-settings Provider for tests and embedders.
type Static struct {
	s Settings
}

// NewStatic wraps fixed settings in a Provider.
func NewStatic(s Settings) *Static {
	return &Static{s: s.Normalize()}
}

// Current implements Provider.
func (p *Static) Current() Settings { return p.s }

var _ Provider = (*FileProvider)(nil)

// FileProvider loads settings from a YAML file and hot-reloads it via
// fsnotify. The engine reads Current() on each loop iteration, so an
// edit takes effect within one tick.
type FileProvider struct {
	logger  logging.Logger
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Settings
	closed  bool
}

// NewFileProvider creates a file-backed settings provider. The file must
// exist and parse at construction time.
func NewFileProvider(logger logging.Logger, path string) (*FileProvider, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch settings file: %w", err)
	}

	p := &FileProvider{
		logger:  logging.ForComponent(logger, logging.ComponentSettings),
		path:    path,
		watcher: watcher,
	}

	if err := p.reload(); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go p.watchLoop()

	return p, nil
}

// Current implements Provider.
func (p *FileProvider) Current() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close stops watching the settings file.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.watcher.Close()
}

func (p *FileProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings file: %w", err)
	}

	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	return nil
}

// watchLoop processes fsnotify events until the watcher closes. A failed
// reload keeps the previous settings.
func (p *FileProvider) watchLoop() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := p.reload(); err != nil {
				p.logger.Warn().Err(err).Msg("settings file changed but reload failed, keeping previous settings")
				continue
			}
			p.logger.Info().Msg("settings file reloaded")

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("settings file watcher error")
		}
	}
}
