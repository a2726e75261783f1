// Package flags stores operator switches as namespaced keys: reduced-luck
// players and disabled games.
package flags

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Namespaces used by the control service
const (
	NamespaceReducedLuck  = "reduced_luck"
	NamespaceDisabledGame = "disabled_game"
)

// Store holds presence flags keyed by namespace and id
type Store interface {
	Set(ctx context.Context, namespace, id string) error
	Clear(ctx context.Context, namespace, id string) error
	Has(ctx context.Context, namespace, id string) (bool, error)
	List(ctx context.Context, namespace string) ([]string, error)
}

// RedisStore keeps each namespace as a Redis set
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed flag store. Keys are "<prefix>:<namespace>".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(namespace string) string {
	return s.prefix + ":" + namespace
}

func (s *RedisStore) Set(ctx context.Context, namespace, id string) error {
	if err := s.rdb.SAdd(ctx, s.key(namespace), id).Err(); err != nil {
		return fmt.Errorf("set flag %s/%s: %w", namespace, id, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, namespace, id string) error {
	if err := s.rdb.SRem(ctx, s.key(namespace), id).Err(); err != nil {
		return fmt.Errorf("clear flag %s/%s: %w", namespace, id, err)
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, namespace, id string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key(namespace), id).Result()
	if err != nil {
		return false, fmt.Errorf("read flag %s/%s: %w", namespace, id, err)
	}
	return ok, nil
}

func (s *RedisStore) List(ctx context.Context, namespace string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.key(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags %s: %w", namespace, err)
	}
	return ids, nil
}

// MemoryStore keeps flags in process
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory flag store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]map[string]struct{})}
}

func (s *MemoryStore) Set(_ context.Context, namespace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.flags[namespace]
	if !ok {
		ns = make(map[string]struct{})
		s.flags[namespace] = ns
	}
	ns[id] = struct{}{}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, namespace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags[namespace], id)
	return nil
}

func (s *MemoryStore) Has(_ context.Context, namespace, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[namespace][id]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.flags[namespace]))
	for id := range s.flags[namespace] {
		ids = append(ids, id)
	}
	return ids, nil
}
