package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryAdapter is an embedded in-memory Adapter used by tests (spec.md
// Section 4.8). The CLI does not use it: newAdapter in cmd/acebeads always
// builds an ExecClient and has no fallback when the binary is missing.
type MemoryAdapter struct {
	mu    sync.Mutex
	items map[string]Item
	deps  []Dependency
	now   func() string
	newID func() string

	// OnClose, when set, is invoked synchronously after an item
	// transitions to closed, carrying the ClosureEvent the learning
	// pipeline reacts to.
	OnClose func(ClosureEvent)
}

// NewMemoryAdapter returns an empty MemoryAdapter using the real clock
// and a real UUID generator.
func NewMemoryAdapter(now func() string) *MemoryAdapter {
	return &MemoryAdapter{
		items: map[string]Item{},
		now:   now,
		newID: uuid.NewString,
	}
}

func (m *MemoryAdapter) Create(_ context.Context, title, description string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	item := Item{
		ID:          m.newID(),
		Title:       title,
		Description: description,
		Status:      StatusOpen,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *MemoryAdapter) List(_ context.Context, filter Filter) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Item
	for _, item := range m.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Parent != "" && item.Parent != filter.Parent {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) Get(_ context.Context, id string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("tracker: item %s not found", id)
	}
	return item, nil
}

func (m *MemoryAdapter) Update(_ context.Context, id, description string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("tracker: item %s not found", id)
	}
	item.Description = description
	item.UpdatedAt = m.now()
	if item.Status == StatusOpen {
		item.Status = StatusInProgress
	}
	m.items[id] = item
	return item, nil
}

func (m *MemoryAdapter) Close(_ context.Context, id string) (Item, error) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return Item{}, fmt.Errorf("tracker: item %s not found", id)
	}
	ts := m.now()
	item.Status = StatusClosed
	item.UpdatedAt = ts
	item.ClosedAt = ts
	m.items[id] = item
	onClose := m.OnClose
	m.mu.Unlock()

	if onClose != nil {
		onClose(ClosureEvent{ItemID: id})
	}
	return item, nil
}

func (m *MemoryAdapter) AddDependency(_ context.Context, dep Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[dep.FromID]; !ok {
		return fmt.Errorf("tracker: item %s not found", dep.FromID)
	}
	if _, ok := m.items[dep.ToID]; !ok {
		return fmt.Errorf("tracker: item %s not found", dep.ToID)
	}

	if dep.Kind == DepParentChild {
		child := m.items[dep.ToID]
		child.Parent = dep.FromID
		m.items[dep.ToID] = child
	}

	m.deps = append(m.deps, dep)
	return nil
}

func (m *MemoryAdapter) DiscoveredFromParent(ctx context.Context, parentID string) ([]Item, error) {
	m.mu.Lock()
	var childIDs []string
	for _, d := range m.deps {
		if d.Kind == DepDiscoveredFrom && d.FromID == parentID {
			childIDs = append(childIDs, d.ToID)
		}
	}
	m.mu.Unlock()

	var out []Item
	for _, id := range childIDs {
		item, err := m.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) Export(_ context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
