// Package assets describes the resources the server pushes and serves.
//
// A Descriptor names one pushable resource: the path the client sees, the
// name it is stored under, and its content type. Descriptors are built per
// request from server-enumerated names; client input never reaches them.
//
// Stored names may be fingerprinted. A build step can emit a manifest.json
// mapping logical names to their hashed versions:
//
//	{
//	  "style.css": "style.e5f6a7b8.css",
//	  "script.js": "script.a1b2c3d4.js"
//	}
//
// Load that manifest and hand it to a Catalog so that descriptors, and the
// links written into the document, point at the fingerprinted files:
//
//	manifest, _ := assets.LoadManifest(afero.NewOsFs(), "public/manifest.json")
//	catalog := assets.NewCatalog(manifest)
//	early, _ := catalog.Describe("style.css", "style1.css")
package assets

import (
	"encoding/json"
	"sync"

	"github.com/spf13/afero"
)

// Manifest holds the mapping from logical asset names to stored names.
// It is safe for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// LoadManifest reads a manifest.json file from fsys.
// The manifest file is a JSON object: {"style.css": "style.abc123.css"}.
func LoadManifest(fsys afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest JSON read from any source.
func ParseManifest(data []byte) (*Manifest, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]string)
	}

	return &Manifest{entries: entries}, nil
}

// Resolve returns the stored name for the given logical name.
// If not found, returns the name unchanged.
func (m *Manifest) Resolve(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[name]; ok {
		return resolved
	}
	return name
}

// Has returns true if the manifest contains the given name.
func (m *Manifest) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[name]
	return ok
}

// Set adds or updates an entry in the manifest.
func (m *Manifest) Set(name, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = resolved
}

// Len returns the number of entries in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
