package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dropstream/drops-miner/logging"
)

var _ TokenProvider = (*FileTokenProvider)(nil)

// FileTokenProvider loads a bearer token from a YAML credential file and
// hot-reloads it via fsnotify when the file changes, so an operator can
// rotate credentials without restarting the miner.
type FileTokenProvider struct {
	logger  logging.Logger
	path    string
	watcher *fsnotify.Watcher

	mu     sync.RWMutex
	token  string
	closed bool
}

// CredentialFile is the structure of the credential file.
//
// Schema:
//
//	access_token: "abcdef0123456789"   # bearer token for the catalog API
type CredentialFile struct {
	AccessToken string `yaml:"access_token" json:"access_token"`
}

// Validate validates the credential file structure.
func (f *CredentialFile) Validate() error {
	if strings.TrimSpace(f.AccessToken) == "" {
		return fmt.Errorf("missing required field 'access_token'")
	}
	return nil
}

// NewFileTokenProvider creates a file-backed token provider and performs
// the initial load. The file must exist and parse at construction time.
func NewFileTokenProvider(logger logging.Logger, path string) (*FileTokenProvider, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch credential file: %w", err)
	}

	p := &FileTokenProvider{
		logger:  logging.ForComponent(logger, logging.ComponentAuth),
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

// Token implements TokenProvider.
func (p *FileTokenProvider) Token(_ context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == "" {
		return "", ErrUnauthenticated
	}
	return p.token, nil
}

// Close stops watching the credential file.
func (p *FileTokenProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.watcher.Close()
}

// reload re-reads and validates the credential file.
func (p *FileTokenProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}

	var file CredentialFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credential file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return fmt.Errorf("invalid credential file: %w", err)
	}

	p.mu.Lock()
	p.token = strings.TrimSpace(file.AccessToken)
	p.mu.Unlock()

	return nil
}

// watchLoop processes fsnotify events until the watcher closes.
// A failed reload keeps the previous token; rotation failures must not
// take down a running session.
func (p *FileTokenProvider) watchLoop() {
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
				p.logger.Warn().Err(err).Msg("credential file changed but reload failed, keeping previous token")
				continue
			}
			p.logger.Info().Msg("credential file reloaded")

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("credential file watcher error")
		}
	}
}
