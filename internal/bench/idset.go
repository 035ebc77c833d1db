package bench

import (
	"maps"
	"slices"
	"sync"
)

// IDSet is a concurrency safe set of operation ids.
type IDSet struct {
	mu  sync.RWMutex
	ids map[int]struct{}
}

func NewIDSet(ids ...int) *IDSet {
	s := &IDSet{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add adds id and reports whether it was not yet present.
func (s *IDSet) Add(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *IDSet) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *IDSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ids)
}

// IDs returns the sorted ids in the set.
func (s *IDSet) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.ids))
}

// Filter returns the ids not contained in the set, keeping their order.
func (s *IDSet) Filter(ids []int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
