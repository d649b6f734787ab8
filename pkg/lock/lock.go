// Package lock provides per-item mutual exclusion so that the
// check-fetch-write sequence for one item never runs twice concurrently.
package lock

import (
	"context"
	"fmt"
	"sync"

	"dyfav/pkg/config"
	"dyfav/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker hands out exclusive locks by key
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
	Close() error
}

// Memory is an in-process keyed mutex
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewMemory creates an in-process locker
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done
func (m *Memory) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, e, true) })
	}, nil
}

func (m *Memory) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

// New builds the locker selected by download.lock_backend
func New(cfg *config.Config, log logger.Logger) (Locker, error) {
	switch cfg.Download.LockBackend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(rdb, cfg.Redis.LockTTL, log), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Download.LockBackend)
	}
}
