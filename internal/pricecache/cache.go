package pricecache

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/arbscan/internal/chains"
)

// Key identifies one (chain, venue, pair) observation slot.
type Key struct {
	Chain chains.ChainID
	Venue string
	Pair  chains.PairKey
}

// Snapshot is one immutable observation of pool state. A newer snapshot
// replaces, never edits, the stored one, so readers holding a *Snapshot
// always see a coherent value.
//
// Concentrated-liquidity pools are stored as exact virtual reserves
// (x = L*2^96/sqrtP, y = L*sqrtP/2^96) so the same quote path serves both
// venue kinds.
type Snapshot struct {
	Key      Key
	Token0   common.Address
	Token1   common.Address
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
	FeeBps   uint64

	SourceBlock uint64
	ObservedAt  time.Time
}

// newer orders snapshots by logical timestamp: source block first, wall
// clock only as a tie-break within the same block.
func (s *Snapshot) newer(than *Snapshot) bool {
	if s.SourceBlock != than.SourceBlock {
		return s.SourceBlock > than.SourceBlock
	}
	return s.ObservedAt.After(than.ObservedAt)
}

const shardCount = 16

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*Snapshot
}

// Cache holds the latest snapshot per key. Sharded so concurrent upserts
// for different keys don't contend; same-key upserts are linearized under
// the shard lock with a replace-if-newer compare.
type Cache struct {
	shards [shardCount]shard
	now    func() time.Time
}

func New() *Cache {
	c := &Cache{now: time.Now}
	for i := range c.shards {
		c.shards[i].entries = make(map[Key]*Snapshot)
	}
	return c
}

func (c *Cache) shardFor(k Key) *shard {
	h := fnv.New32a()
	h.Write(k.Pair.Token0.Bytes())
	h.Write(k.Pair.Token1.Bytes())
	h.Write([]byte(k.Venue))
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(uint64(k.Chain) >> (8 * i))
	}
	h.Write(b[:])
	return &c.shards[h.Sum32()%shardCount]
}

// Upsert stores snap unless the cache already holds a logically newer
// snapshot for the same key. Returns whether snap was stored, so callers
// can count discarded out-of-order observations.
func (c *Cache) Upsert(snap *Snapshot) bool {
	sh := c.shardFor(snap.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.entries[snap.Key]
	if ok && !snap.newer(cur) {
		return false
	}
	sh.entries[snap.Key] = snap
	return true
}

// Get returns the stored snapshot if present and observed within maxAge.
// Stale entries are excluded but kept for diagnostics until the TTL sweep.
func (c *Cache) Get(key Key, maxAge time.Duration) (*Snapshot, bool) {
	sh := c.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	snap, ok := sh.entries[key]
	if !ok {
		return nil, false
	}
	if maxAge > 0 && c.now().Sub(snap.ObservedAt) > maxAge {
		return nil, false
	}
	return snap, true
}

// Sweep evicts entries untouched for longer than ttl and reports how many
// were removed. Run periodically to bound memory.
func (c *Cache) Sweep(ttl time.Duration) int {
	cutoff := c.now().Add(-ttl)
	removed := 0
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for k, snap := range sh.entries {
			if snap.ObservedAt.Before(cutoff) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of cached entries across all shards.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
