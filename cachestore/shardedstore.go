package cachestore

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
)

// ring is src/consistenthash/consistenthash.go's Map, kept verbatim in
// spirit (replicas, sorted hash ring, Get(key) string) but renamed and
// folded into this package since it now has exactly one caller.
type ring struct {
	replicas int
	keys     []int
	hashMap  map[int]string
}

func newRing(replicas int) *ring {
	return &ring{replicas: replicas, hashMap: map[int]string{}}
}

func (r *ring) add(shardIDs ...string) {
	for _, id := range shardIDs {
		for i := 0; i < r.replicas; i++ {
			h := int(crc32.ChecksumIEEE([]byte(strconv.Itoa(i) + id)))
			if _, exists := r.hashMap[h]; !exists {
				r.keys = append(r.keys, h)
				r.hashMap[h] = id
			}
		}
	}
	sort.Ints(r.keys)
}

func (r *ring) get(key string) string {
	if len(r.keys) == 0 {
		return ""
	}
	h := int(crc32.ChecksumIEEE([]byte(key)))
	idx := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= h })
	if idx == len(r.keys) {
		idx = 0
	}
	return r.hashMap[r.keys[idx]]
}

// ShardedStore spreads ModuleKeys across multiple Store backends by
// consistent hashing, for deployments running more than one cache backend
// instance (config.Config.ShardAddrs).
type ShardedStore struct {
	ring   *ring
	shards map[string]Store
}

func NewShardedStore(shards map[string]Store, replicas int) *ShardedStore {
	r := newRing(replicas)
	ids := make([]string, 0, len(shards))
	for id := range shards {
		ids = append(ids, id)
	}
	r.add(ids...)
	return &ShardedStore{ring: r, shards: shards}
}

func (s *ShardedStore) shardFor(key string) (Store, error) {
	id := s.ring.get(key)
	shard, ok := s.shards[id]
	if !ok {
		return nil, fmt.Errorf("cachestore: no shard available for key %q", key)
	}
	return shard, nil
}

func (s *ShardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	shard, err := s.shardFor(key)
	if err != nil {
		return nil, false, err
	}
	return shard.Get(ctx, key)
}

func (s *ShardedStore) Put(ctx context.Context, key string, value []byte) error {
	shard, err := s.shardFor(key)
	if err != nil {
		return err
	}
	return shard.Put(ctx, key, value)
}

func (s *ShardedStore) Delete(ctx context.Context, key string) error {
	shard, err := s.shardFor(key)
	if err != nil {
		return err
	}
	return shard.Delete(ctx, key)
}

func (s *ShardedStore) Keys(ctx context.Context) ([]string, error) {
	var all []string
	for _, shard := range s.shards {
		keys, err := shard.Keys(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
	}
	return all, nil
}
