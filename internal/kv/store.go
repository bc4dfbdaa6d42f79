// Package kv keeps user membership sets such as the blacklist and the list of
// known chats. Each key space is guarded on its own so a broadcast over one
// set never blocks lookups in another.
package kv

import (
	"context"
	"sort"
	"sync"
)

// Key spaces
const (
	KeyBlacklist = "BLACKLIST"
	KeyAllChats  = "ALLCHATS"
)

// MembershipStore stores sets of user or chat ids per key
type MembershipStore interface {
	Add(ctx context.Context, key string, member int64) error
	Remove(ctx context.Context, key string, member int64) error
	Contains(ctx context.Context, key string, member int64) (bool, error)
	Members(ctx context.Context, key string) ([]int64, error)
}

type space struct {
	mu      sync.RWMutex
	members map[int64]struct{}
}

// Memory is an in-process MembershipStore
type Memory struct {
	mu     sync.Mutex // guards spaces, not their contents
	spaces map[string]*space
}

// NewMemory creates an empty in-process store
func NewMemory() *Memory {
	return &Memory{spaces: make(map[string]*space)}
}

func (m *Memory) space(key string) *space {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spaces[key]
	if !ok {
		s = &space{members: make(map[int64]struct{})}
		m.spaces[key] = s
	}
	return s
}

// Add puts member into key
func (m *Memory) Add(_ context.Context, key string, member int64) error {
	s := m.space(key)
	s.mu.Lock()
	s.members[member] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Remove drops member from key
func (m *Memory) Remove(_ context.Context, key string, member int64) error {
	s := m.space(key)
	s.mu.Lock()
	delete(s.members, member)
	s.mu.Unlock()
	return nil
}

// Contains reports whether member is in key
func (m *Memory) Contains(_ context.Context, key string, member int64) (bool, error) {
	s := m.space(key)
	s.mu.RLock()
	_, ok := s.members[member]
	s.mu.RUnlock()
	return ok, nil
}

// Members returns the members of key in ascending order
func (m *Memory) Members(_ context.Context, key string) ([]int64, error) {
	s := m.space(key)
	s.mu.RLock()
	out := make([]int64, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
