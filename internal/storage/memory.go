package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

// Memory is a map-backed store. Each call is atomic on its own.
type Memory struct {
	mu     sync.RWMutex
	items  map[int64]catalog.Resource
	nextID int64
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		items: make(map[int64]catalog.Resource),
		now:   time.Now,
	}
}

// Create stores a new resource built from item with the next ID
func (m *Memory) Create(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, util.WrapRepositoryError("create", item.Label(), err)
	}
	if err := item.Validate(); err != nil {
		return nil, util.WrapRepositoryError("create", item.Label(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r := catalog.NewResource(item, m.now().UTC())
	r.ID = m.nextID
	m.items[r.ID] = r
	return &r, nil
}

// Find returns a copy of the stored resource
func (m *Memory) Find(ctx context.Context, id int64) (*catalog.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, util.WrapRepositoryError("find", catalog.FormatKey(id), err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.items[id]
	if !ok {
		return nil, notFound("find", id)
	}
	return &r, nil
}

// Update replaces the stored resource, bumping its version
func (m *Memory) Update(ctx context.Context, r catalog.Resource) error {
	if err := ctx.Err(); err != nil {
		return util.WrapRepositoryError("update", r.Key(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.updateLocked(r)
}

func (m *Memory) updateLocked(r catalog.Resource) error {
	existing, ok := m.items[r.ID]
	if !ok {
		return notFound("update", r.ID)
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Locator = strings.TrimSpace(r.Locator)
	r.CreatedAt = existing.CreatedAt
	r.Version = existing.Version + 1
	r.UpdatedAt = m.now().UTC()
	m.items[r.ID] = r
	return nil
}

// UpdateBatch applies every update or none of them
func (m *Memory) UpdateBatch(ctx context.Context, resources []catalog.Resource) error {
	if err := ctx.Err(); err != nil {
		return util.WrapRepositoryError("update batch", "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range resources {
		if _, ok := m.items[r.ID]; !ok {
			return notFound("update batch", r.ID)
		}
	}
	for _, r := range resources {
		if err := m.updateLocked(r); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the resource
func (m *Memory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return util.WrapRepositoryError("delete", catalog.FormatKey(id), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return notFound("delete", id)
	}
	delete(m.items, id)
	return nil
}

// List returns every resource ordered by ID
func (m *Memory) List(ctx context.Context) ([]catalog.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, util.WrapRepositoryError("list", "", err)
	}

	m.mu.RLock()
	out := make([]catalog.Resource, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}
