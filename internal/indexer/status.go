package indexer

import (
	"sync"
	"time"

	"github.com/dshills/semindex/pkg/types"
)

// statusMap holds the last status of each project. Every write replaces
// the whole record, so readers never see a half-updated status.
type statusMap struct {
	mu      sync.RWMutex
	entries map[string]types.IndexStatus
}

func newStatusMap() *statusMap {
	return &statusMap{entries: make(map[string]types.IndexStatus)}
}

func (s *statusMap) set(projectID string, state types.IndexState, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[projectID] = types.IndexStatus{
		State:     state,
		Note:      note,
		UpdatedAt: time.Now(),
	}
}

func (s *statusMap) get(projectID string) types.IndexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.entries[projectID]; ok {
		return st
	}
	return types.UninitializedStatus()
}

// Status returns the last known status of a project
func (idx *Indexer) Status(projectID string) types.IndexStatus {
	return idx.status.get(projectID)
}

// Statuses returns the status of each requested project. Projects that were
// never indexed report uninitialized.
func (idx *Indexer) Statuses(projectIDs []string) map[string]types.IndexStatus {
	out := make(map[string]types.IndexStatus, len(projectIDs))
	for _, id := range projectIDs {
		out[id] = idx.status.get(id)
	}
	return out
}
