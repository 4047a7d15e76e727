package memory

import (
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/session"

	"github.com/patrickmn/go-cache"
)

const liveSnapshotKey = "live"

// SnapshotRepository caches the last rendered session snapshot so read
// traffic (status polls, websocket joins) does not re-clone the whole
// collection on every hit. Mutating operations invalidate it.
type SnapshotRepository struct {
	cache *cache.Cache
}

func NewSnapshotRepository() *SnapshotRepository {
	// Short default expiration; a stale snapshot self-heals even if an
	// invalidation is missed.
	c := cache.New(30*time.Second, 10*time.Minute)
	return &SnapshotRepository{
		cache: c,
	}
}

func (r *SnapshotRepository) Save(snapshot session.Snapshot) {
	r.cache.Set(liveSnapshotKey, snapshot, cache.DefaultExpiration)
}

func (r *SnapshotRepository) Get() (session.Snapshot, bool) {
	if x, found := r.cache.Get(liveSnapshotKey); found {
		return x.(session.Snapshot), true
	}
	return session.Snapshot{}, false
}

func (r *SnapshotRepository) Invalidate() {
	r.cache.Delete(liveSnapshotKey)
}
