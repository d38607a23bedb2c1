package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/coursemarket-backend/internal/data/aggregates"
)

// Hooks records aggregate outcomes so tests can assert which operations ran and how they ended.
type Hooks struct {
	mu        sync.Mutex
	statuses  map[string][]string
	conflicts map[string]int
	retries   map[string]int
}

var _ aggregates.Hooks = (*Hooks)(nil)

func (h *Hooks) ObserveOperation(name, status string, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.statuses == nil {
		h.statuses = map[string][]string{}
	}
	h.statuses[name] = append(h.statuses[name], status)
}

func (h *Hooks) IncConflict(name string) { h.bump(&h.conflicts, name) }
func (h *Hooks) IncRetry(name string)    { h.bump(&h.retries, name) }

func (h *Hooks) bump(m *map[string]int, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if *m == nil {
		*m = map[string]int{}
	}
	(*m)[name]++
}

// Statuses returns the recorded statuses for op in call order.
func (h *Hooks) Statuses(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses[op]...)
}

func (h *Hooks) Conflicts(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conflicts[op]
}

func (h *Hooks) Retries(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retries[op]
}
