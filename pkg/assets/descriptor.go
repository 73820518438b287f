package assets

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// Descriptor identifies one pushable resource. It is immutable: the fields
// are set by Catalog.Describe and only read afterwards.
type Descriptor struct {
	publicPath  string
	storagePath string
	contentType string
}

// PublicPath returns the client-visible absolute path, e.g. "/style.css".
func (d Descriptor) PublicPath() string { return d.publicPath }

// StoragePath returns the clean name relative to the storage root.
func (d Descriptor) StoragePath() string { return d.storagePath }

// ContentType returns the content type, or "" for unknown extensions.
func (d Descriptor) ContentType() string { return d.contentType }

// IsStylesheet reports whether the asset is served as CSS.
func (d Descriptor) IsStylesheet() bool { return d.contentType == "text/css" }

// IsScript reports whether the asset is served as JavaScript.
func (d Descriptor) IsScript() bool { return d.contentType == "application/javascript" }

// String returns the public path.
func (d Descriptor) String() string { return d.publicPath }

// NameError reports an asset name that does not resolve inside the root.
type NameError struct {
	Name string
}

// Error returns the error message.
func (e *NameError) Error() string {
	return fmt.Sprintf("assets: invalid asset name %q", e.Name)
}

// contentTypes is the fixed table for pushed assets.
var contentTypes = map[string]string{
	"css": "text/css",
	"js":  "application/javascript",
}

// ContentTypeFor returns the content type for name from the fixed table, or
// "" when the extension is not covered.
func ContentTypeFor(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	return contentTypes[strings.ToLower(ext)]
}

// LookupMIME returns the content type for a requested path. The fixed table
// wins; other extensions fall back to the system MIME database.
func LookupMIME(p string) string {
	if ct := ContentTypeFor(p); ct != "" {
		return ct
	}
	return mime.TypeByExtension(path.Ext(p))
}

// CleanName returns a sanitized name relative to the storage root. It rejects
// traversal and absolute-path tricks so that resolution cannot escape the
// root. A single leading "/" is accepted so request paths can be passed as is.
func CleanName(name string) (string, bool) {
	rel := strings.TrimPrefix(name, "/")
	if rel == "" {
		return "", false
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A second leading "/" is an absolute-path attempt ("//etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning so traversal is not cleaned away.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == "" || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}
