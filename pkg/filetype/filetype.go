// Package filetype classifies files by MIME type or extension.
//
// A Registry is built once at boot and is read-only afterwards, so it is safe
// for concurrent lookups. Built-in definitions are registered first, custom
// definitions after them, and the fallback is set last:
//
//	reg := filetype.NewDefaultRegistry()
//	reg.Register(filetype.Definition{ID: "model", MimeTypes: []string{"model/*"}, Priority: 5})
//	def := reg.FromFilename("scene.glb")
package filetype

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// Definition describes one file type.
type Definition struct {
	ID         string
	Label      string
	Icon       string
	Color      string
	MimeTypes  []string
	Extensions []string
	CanPreview bool
	Viewer     string
	Priority   int
	Metadata   map[string]string
}

// Category is the coarse bucket the database model stores: video, image,
// audio, document or other. Metadata["category"] overrides the ID.
func (d Definition) Category() string {
	c := d.Metadata["category"]
	if c == "" {
		c = d.ID
	}
	switch c {
	case "video", "image", "audio", "document":
		return c
	}
	return "other"
}

// MatchesMime reports whether mime is listed exactly or under a "type/*"
// wildcard.
func (d Definition) MatchesMime(mime string) bool {
	mime = normalizeMime(mime)
	if mime == "" {
		return false
	}
	for _, m := range d.MimeTypes {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == mime {
			return true
		}
		if prefix, ok := strings.CutSuffix(m, "/*"); ok && strings.HasPrefix(mime, prefix+"/") {
			return true
		}
	}
	return false
}

// MatchesExtension compares case-insensitively with the leading dot stripped.
func (d Definition) MatchesExtension(ext string) bool {
	ext = normalizeExt(ext)
	if ext == "" {
		return false
	}
	for _, e := range d.Extensions {
		if normalizeExt(e) == ext {
			return true
		}
	}
	return false
}

type entry struct {
	def Definition
	seq int
}

// Registry holds definitions ordered by descending priority.
type Registry struct {
	mu       sync.RWMutex
	entries  []entry
	seq      int
	fallback Definition
}

// NewRegistry returns an empty registry whose fallback is Other().
func NewRegistry() *Registry {
	return &Registry{fallback: Other()}
}

// NewDefaultRegistry returns a registry preloaded with the built-in types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range Builtins() {
		r.Register(def)
	}
	return r
}

// Register inserts def, replacing any definition with the same ID. A
// replacement keeps the original registration slot.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].def.ID == def.ID {
			r.entries[i].def = def
			r.sortLocked()
			return
		}
	}
	r.seq++
	r.entries = append(r.entries, entry{def: def, seq: r.seq})
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.def.Priority != b.def.Priority {
			return a.def.Priority > b.def.Priority
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.def.ID < b.def.ID
	})
}

// FromMimeType returns the first matching definition or the fallback.
func (r *Registry) FromMimeType(mime string) Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.def.MatchesMime(mime) {
			return e.def
		}
	}
	return r.fallback
}

// FromExtension returns the first matching definition or the fallback.
func (r *Registry) FromExtension(ext string) Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.def.MatchesExtension(ext) {
			return e.def
		}
	}
	return r.fallback
}

// FromFilename classifies by the file's extension.
func (r *Registry) FromFilename(name string) Definition {
	return r.FromExtension(path.Ext(name))
}

// Detect classifies by the filename's extension and falls back to the MIME
// type when the extension is unknown.
func (r *Registry) Detect(mime, name string) Definition {
	fallbackID := r.Fallback().ID
	if def := r.FromFilename(name); def.ID != fallbackID {
		return def
	}
	return r.FromMimeType(mime)
}

func (r *Registry) SetFallback(def Definition) {
	r.mu.Lock()
	r.fallback = def
	r.mu.Unlock()
}

func (r *Registry) Fallback() Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// All returns the registered definitions in lookup order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.def
	}
	return out
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
