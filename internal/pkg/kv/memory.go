package kv

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store with TTL support. It backs tests
// and single-process deployments that run without Redis.
type Memory struct {
	mu      sync.Mutex
	values  map[string]memoryEntry
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	expires map[string]time.Time

	// now is swappable so tests can advance the clock past TTL windows.
	now func() time.Time
}

type memoryEntry struct {
	value string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// expireLocked drops the key in any namespace if its TTL has elapsed.
func (m *Memory) expireLocked(key string) {
	deadline, ok := m.expires[key]
	if !ok {
		return
	}
	if m.now().Before(deadline) {
		return
	}
	delete(m.values, key)
	delete(m.sets, key)
	delete(m.hashes, key)
	delete(m.expires, key)
}

func (m *Memory) existsLocked(key string) bool {
	m.expireLocked(key)
	if _, ok := m.values[key]; ok {
		return true
	}
	if s, ok := m.sets[key]; ok && len(s) > 0 {
		return true
	}
	if h, ok := m.hashes[key]; ok && len(h) > 0 {
		return true
	}
	return false
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	e, ok := m.values[key]
	if !ok {
		return "", nil
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = memoryEntry{value: value}
	if ttl > 0 {
		m.expires[key] = m.now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
		delete(m.hashes, key)
		delete(m.expires, key)
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsLocked(key), nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.existsLocked(key) {
		return false, nil
	}
	m.expires[key] = m.now().Add(ttl)
	return true, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.existsLocked(key) {
		return 0, nil
	}
	deadline, ok := m.expires[key]
	if !ok {
		return 0, nil
	}
	return deadline.Sub(m.now()), nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	var n int64
	if e, ok := m.values[key]; ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	m.values[key] = memoryEntry{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, member := range members {
		s[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	s, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(s, member)
	}
	if len(s) == 0 {
		delete(m.sets, key)
		delete(m.expires, key)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	s, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(s))
	for member := range s {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	s, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	_, found := s[member]
	return found, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	return m.hashes[key][field], nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	h, ok := m.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for field, value := range h {
		out[field] = value
	}
	return out, nil
}

func (m *Memory) DeletePattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key := range m.allKeysLocked() {
		if !m.existsLocked(key) {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return deleted, err
		}
		if !ok {
			continue
		}
		delete(m.values, key)
		delete(m.sets, key)
		delete(m.hashes, key)
		delete(m.expires, key)
		deleted++
	}
	return deleted, nil
}

func (m *Memory) allKeysLocked() map[string]struct{} {
	keys := make(map[string]struct{})
	for key := range m.values {
		keys[key] = struct{}{}
	}
	for key := range m.sets {
		keys[key] = struct{}{}
	}
	for key := range m.hashes {
		keys[key] = struct{}{}
	}
	return keys
}
