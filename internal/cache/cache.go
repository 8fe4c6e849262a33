// Package cache keeps recent solve responses keyed by idempotency key so a
// retried request is answered without solving again.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"routeopt/internal/model"
)

var ErrMiss = errors.New("cache miss")

type ResultCache interface {
	Get(ctx context.Context, key string) (model.SolveResponse, error)
	Set(ctx context.Context, key string, resp model.SolveResponse, ttl time.Duration) error
}

// Fingerprint derives a cache key from the tenant and the request as it
// will be solved. JSON encoding of the request struct is deterministic.
func Fingerprint(tenant string, req model.SolveRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(tenant))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type entry struct {
	key     string
	resp    model.SolveResponse
	expires time.Time
}

// Memory is a process-local cache. Expired entries are dropped lazily and
// the least recently written entry is evicted once max is reached.
type Memory struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is oldest
	max   int
	now   func() time.Time
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 1024
	}
	return &Memory{items: map[string]*list.Element{}, order: list.New(), max: max, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (model.SolveResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[key]
	if !ok {
		return model.SolveResponse{}, ErrMiss
	}
	e := el.Value.(*entry)
	if m.now().After(e.expires) {
		m.remove(el)
		return model.SolveResponse{}, ErrMiss
	}
	return e.resp, nil
}

func (m *Memory) Set(_ context.Context, key string, resp model.SolveResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.remove(el)
	}
	m.items[key] = m.order.PushBack(&entry{key: key, resp: resp, expires: m.now().Add(ttl)})
	for m.order.Len() > m.max {
		m.remove(m.order.Front())
	}
	return nil
}

func (m *Memory) remove(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*entry).key)
}

// Len reports the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
