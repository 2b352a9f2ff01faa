package behavior

import (
	"hash/fnv"
	"sync"
	"time"
)

// Store holds behavioral profiles keyed by identity. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(identity string) (*Profile, bool)
	GetOrCreate(identity string) *Profile
	Delete(identity string)
	Len() int
	Sweep(maxIdle time.Duration) int
}

const storeShards = 16

type shard struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

type shardedStore struct {
	shards [storeShards]*shard
}

// NewStore returns the default in-process sharded profile store.
func NewStore() Store {
	s := &shardedStore{}
	for i := range s.shards {
		s.shards[i] = &shard{profiles: make(map[string]*Profile)}
	}
	return s
}

func (s *shardedStore) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return s.shards[h.Sum32()%storeShards]
}

func (s *shardedStore) Get(identity string) (*Profile, bool) {
	sh := s.shardFor(identity)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	p, ok := sh.profiles[identity]
	return p, ok
}

func (s *shardedStore) GetOrCreate(identity string) *Profile {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	p, ok := sh.profiles[identity]
	if !ok {
		p = newProfile(identity)
		sh.profiles[identity] = p
	}
	return p
}

func (s *shardedStore) Delete(identity string) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.profiles, identity)
}

func (s *shardedStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.profiles)
		sh.mu.RUnlock()
	}
	return total
}

// Sweep drops profiles whose last attempt is older than maxIdle, skipping
// profiles under an unexpired lock. Returns the number removed.
func (s *shardedStore) Sweep(maxIdle time.Duration) int {
	now := time.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, p := range sh.profiles {
			if p.IsLocked && now.Before(p.LockExpiresAt) {
				continue
			}
			if now.Sub(p.LastAttempt) > maxIdle {
				delete(sh.profiles, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
