// Package draft persists the editable CV draft and announces refreshes.
package draft

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonathan/cv-ingest/internal/types"
)

// ErrNotFound is returned when an owner has no draft yet
var ErrNotFound = errors.New("draft not found")

// Store holds one draft per owner. ReplaceDraft must clear every section and
// write the new state atomically; readers never observe a partial draft.
type Store interface {
	ReplaceDraft(ctx context.Context, owner uuid.UUID, state *types.CVState) error
	GetDraft(ctx context.Context, owner uuid.UUID) (*types.CVState, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*types.CVState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[uuid.UUID]*types.CVState)}
}

// ReplaceDraft swaps the owner's draft for a copy of state
func (m *MemoryStore) ReplaceDraft(ctx context.Context, owner uuid.UUID, state *types.CVState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := state.Clone()
	if next == nil {
		next = types.NewCVState()
	}
	next.EnsureComplete()

	m.mu.Lock()
	m.drafts[owner] = next
	m.mu.Unlock()
	return nil
}

// GetDraft returns a copy of the owner's draft
func (m *MemoryStore) GetDraft(ctx context.Context, owner uuid.UUID) (*types.CVState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.drafts[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}
