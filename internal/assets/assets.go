// Package assets resolves static asset paths, preferring content-hashed
// names from web/static/dist/manifest.json when a build produced one.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	StylesheetPath   = "css/archive.css"
	BlockControlPath = "js/block-control.js"
)

type Manifest struct {
	mu       sync.RWMutex
	assets   map[string]string
	basePath string
}

func NewManifest(basePath string) *Manifest {
	return &Manifest{
		assets:   make(map[string]string),
		basePath: basePath,
	}
}

// Load reads the manifest. A missing manifest means unhashed development paths.
func (m *Manifest) Load() error {
	manifestPath := filepath.Join(m.basePath, "web", "static", "dist", "manifest.json")

	// #nosec G304 -- manifestPath is built from the configured base path
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		m.replace(map[string]string{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading asset manifest: %w", err)
	}

	assets := map[string]string{}
	if err := json.Unmarshal(data, &assets); err != nil {
		return fmt.Errorf("parsing asset manifest: %w", err)
	}
	m.replace(assets)
	return nil
}

func (m *Manifest) replace(assets map[string]string) {
	m.mu.Lock()
	m.assets = assets
	m.mu.Unlock()
}

// Get returns the public URL for path.
func (m *Manifest) Get(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if hashed, ok := m.assets[path]; ok {
		return "/static/" + hashed
	}
	return "/static/" + path
}

func (m *Manifest) Stylesheet() string {
	return m.Get(StylesheetPath)
}

func (m *Manifest) BlockControlScript() string {
	return m.Get(BlockControlPath)
}
