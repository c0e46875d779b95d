package library

import (
	"context"
	"sort"
	"sync"

	"library-viewer/internal/catalog"
	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// Cache is the in-memory index of discovered libraries. It maps library
// ids to metadata and to open catalog readers; the two maps are always
// updated together so every listed library has a usable reader.
//
// A single mutex covers reads and writes. Callers receive Library
// records by value; a record obtained before a rebuild stays valid as a
// stale snapshot.
type Cache struct {
	mu        sync.Mutex
	libraries map[string]Library
	readers   map[string]*catalog.Reader
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		libraries: make(map[string]Library),
		readers:   make(map[string]*catalog.Reader),
	}
}

// Library returns the metadata record for one library id.
func (c *Cache) Library(id string) (Library, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lib, ok := c.libraries[id]
	return lib, ok
}

// Catalog returns the open catalog reader for one library id. The
// reader stays owned by the Cache and must not be closed by callers.
func (c *Cache) Catalog(id string) (*catalog.Reader, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.readers[id]
	return r, ok
}

// Libraries returns all cached libraries sorted by name.
func (c *Cache) Libraries() []Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

// Len returns the number of cached libraries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.libraries)
}

// Clear discards all entries and closes their catalog readers.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	for id, r := range c.readers {
		if err := r.Close(); err != nil {
			logging.Error("failed to close catalog for library %s: %v", id, err)
		}
	}
	c.libraries = make(map[string]Library)
	c.readers = make(map[string]*catalog.Reader)
	metrics.LibrariesIndexed.Set(0)
}

// Rebuild atomically replaces the cache contents with the result of a
// fresh scan of basePath. A library whose catalog fails to open is
// dropped with a logged error; a scan failure leaves the cache empty
// and is returned to the caller.
func (c *Cache) Rebuild(ctx context.Context, basePath string) ([]Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()

	libs, err := NewScanner(basePath).Scan(ctx)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	for _, lib := range libs {
		r, err := catalog.Open(lib.CatalogPath)
		if err != nil {
			logging.Error("Dropping library %s (%s): %v", lib.Name, lib.ID, err)
			continue
		}
		// Both maps updated together, never independently.
		c.libraries[lib.ID] = lib
		c.readers[lib.ID] = r
	}

	metrics.LibrariesIndexed.Set(float64(len(c.libraries)))
	metrics.IndexRebuildsTotal.WithLabelValues("success").Inc()
	logging.Info("Index rebuilt: %d libraries", len(c.libraries))

	return c.sortedLocked(), nil
}

func (c *Cache) sortedLocked() []Library {
	libs := make([]Library, 0, len(c.libraries))
	for _, lib := range c.libraries {
		libs = append(libs, lib)
	}
	sort.Slice(libs, func(i, j int) bool {
		return libs[i].Name < libs[j].Name
	})
	return libs
}
