package permission

import "sync"

// snapshot is an immutable view of one role's effective permission set.
// Readers share it without copying; writers replace the whole entry.
type snapshot struct {
	codes []string
	set   map[string]struct{}
}

func newSnapshot(codes []string) *snapshot {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return &snapshot{codes: codes, set: set}
}

func (s *snapshot) has(code string) bool {
	_, ok := s.set[code]
	return ok
}

// SnapshotCache caches per-role permission snapshots. Entries are built
// copy-on-write: a reader holding a snapshot never observes a partial set,
// it only ever sees the version that was current when it looked up. Grants
// and revokes invalidate the affected role synchronously before returning.
//
// A reader that misses rebuilds the entry from storage outside the lock, so
// an invalidation can land between its storage read and its store. Each role
// carries a version for that window: get returns the version alongside the
// miss, put requires it back and discards the snapshot when the version has
// moved. Without this a grant or revoke committed mid-rebuild would be
// shadowed by the stale snapshot until the next invalidation.
type SnapshotCache struct {
	mu       sync.RWMutex
	epoch    uint64
	roles    map[string]*snapshot
	versions map[string]uint64
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		roles:    make(map[string]*snapshot),
		versions: make(map[string]uint64),
	}
}

// version must be called with at least the read lock held. The epoch term
// covers roles Reset has never seen a per-role entry for.
func (c *SnapshotCache) version(role string) uint64 {
	return c.epoch + c.versions[role]
}

func (c *SnapshotCache) get(role string) (*snapshot, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.roles[role]
	return s, c.version(role), ok
}

// put stores the snapshot built for the version captured at get time. A
// moved version means an invalidation raced the rebuild; the snapshot may
// predate the change that caused it and is dropped.
func (c *SnapshotCache) put(role string, s *snapshot, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version(role) != version {
		return
	}
	c.roles[role] = s
}

// Invalidate drops the cached snapshot for role and fences out in-flight
// rebuilds that read storage before the caller's change. Must be called
// before a grant or revoke returns to its caller; staleness here is a
// security bug, not a performance concern.
func (c *SnapshotCache) Invalidate(role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, role)
	c.versions[role]++
}

// Reset drops every cached snapshot and fences out every in-flight rebuild.
// Used after seeding.
func (c *SnapshotCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = make(map[string]*snapshot)
	c.epoch++
}
