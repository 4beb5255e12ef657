package livecache

import (
	"hash/fnv"
	"sync"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// Cache keeps the latest event per (kind, entity) plus a bounded ring of
// recent occurrences per entity. Reads dominate writes, so entries are
// spread over shards each guarded by its own RWMutex.
type Cache struct {
	shards []*shard
}

type Config struct {
	Shards       int
	RingCapacity int
}

type shard struct {
	mu     sync.RWMutex
	latest map[entity.EntityRef]entity.DomainEvent
	recent map[entity.EntityRef]*ring
	cap    int
}

func New(config Config) *Cache {
	shards := config.Shards
	if shards <= 0 {
		shards = 1
	}

	ringCap := config.RingCapacity
	if ringCap <= 0 {
		ringCap = 1
	}

	ret := &Cache{
		shards: make([]*shard, shards),
	}

	for i := range ret.shards {
		ret.shards[i] = &shard{
			latest: map[entity.EntityRef]entity.DomainEvent{},
			recent: map[entity.EntityRef]*ring{},
			cap:    ringCap,
		}
	}

	return ret
}

// Upsert stores the event as the latest snapshot for its entity. Events older
// than the stored snapshot are rejected so late frames from a reconnecting
// provider never roll the cache backwards. Equal timestamps overwrite.
// Returns whether the event was accepted.
func (c *Cache) Upsert(event entity.DomainEvent) bool {
	s := c.shardFor(event.Entity)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.latest[event.Entity]
	if ok && event.Timestamp.Before(existing.Timestamp) {
		return false
	}

	if ok {
		// Descriptive fields accumulate across providers; a bare stat frame
		// must not erase the name a roster frame filled in earlier.
		event.Meta = event.Meta.Merge(existing.Meta)
	}

	s.latest[event.Entity] = event

	if event.Kind == entity.EventOccurrence {
		r, ok := s.recent[event.Entity]
		if !ok {
			r = newRing(s.cap)
			s.recent[event.Entity] = r
		}

		r.push(event)
	}

	return true
}

// Get returns the latest snapshot for the entity, if any.
func (c *Cache) Get(ref entity.EntityRef) (entity.DomainEvent, bool) {
	s := c.shardFor(ref)

	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.latest[ref]

	return event, ok
}

// Recent returns up to n occurrences for the entity, newest first.
func (c *Cache) Recent(ref entity.EntityRef, n int) []entity.DomainEvent {
	s := c.shardFor(ref)

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recent[ref]
	if !ok {
		return nil
	}

	return r.newest(n)
}

// Len returns the number of tracked entities.
func (c *Cache) Len() int {
	ret := 0

	for _, s := range c.shards {
		s.mu.RLock()
		ret += len(s.latest)
		s.mu.RUnlock()
	}

	return ret
}

func (c *Cache) shardFor(ref entity.EntityRef) *shard {
	h := fnv.New32a()
	h.Write([]byte(ref.Kind))
	h.Write([]byte{0})
	h.Write([]byte(ref.ID))

	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// ring is a fixed-capacity overwrite-oldest buffer.
type ring struct {
	buf   []entity.DomainEvent
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{
		buf: make([]entity.DomainEvent, capacity),
	}
}

func (r *ring) push(event entity.DomainEvent) {
	r.buf[r.next] = event
	r.next = (r.next + 1) % len(r.buf)

	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) newest(n int) []entity.DomainEvent {
	if n <= 0 || r.count == 0 {
		return nil
	}

	if n > r.count {
		n = r.count
	}

	ret := make([]entity.DomainEvent, 0, n)

	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		ret = append(ret, r.buf[idx])
	}

	return ret
}
