package handlers

import (
	"sync/atomic"
	"time"

	"library-viewer/internal/appdb"
	"library-viewer/internal/library"
	"library-viewer/internal/startup"
)

type Handlers struct {
	store   *appdb.Store
	cache   *library.Cache
	config  *startup.Config
	started time.Time
	ready   atomic.Bool
}

func New(store *appdb.Store, cache *library.Cache, config *startup.Config) *Handlers {
	return &Handlers{
		store:   store,
		cache:   cache,
		config:  config,
		started: time.Now(),
	}
}

// MarkReady flips the readiness probe once the initial index build has
// completed (successfully or not; an empty index still serves).
func (h *Handlers) MarkReady() {
	h.ready.Store(true)
}
