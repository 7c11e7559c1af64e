package transform

import (
	"encoding/hex"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Sidecar is the in-memory store extract_large_strings spills oversized
// string literals into. Handle shape resolves §9's open question as an
// opaque string: "ref:" + hex(xxhash64(content)) — content-addressed so
// identical literals collapse to the same handle, and resolution is a map
// lookup scoped to one execution context's lifetime.
type Sidecar struct {
	mu      sync.RWMutex
	entries map[string]string

	// maxEntries bounds how many distinct literals one execution may
	// extract, so a pathological script with many unique large literals
	// cannot grow the sidecar unboundedly.
	maxEntries int
}

// NewSidecar constructs an empty sidecar capped at maxEntries distinct
// handles.
func NewSidecar(maxEntries int) *Sidecar {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Sidecar{entries: make(map[string]string), maxEntries: maxEntries}
}

// Put returns the opaque handle for content, registering it if this is the
// first time content has been seen by this sidecar. Returns ok=false if the
// sidecar is full and content is new.
func (s *Sidecar) Put(content string) (handle string, ok bool) {
	handle = "ref:" + hex.EncodeToString(sum64(content))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[handle]; exists {
		return handle, true
	}
	if len(s.entries) >= s.maxEntries {
		return "", false
	}
	s.entries[handle] = content
	return handle, true
}

// Resolve returns the original content for handle, if present.
func (s *Sidecar) Resolve(handle string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[handle]
	return v, ok
}

func sum64(s string) []byte {
	h := xxhash.Sum64String(s)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(h)
		h >>= 8
	}
	return b
}
