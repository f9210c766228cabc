package store

import (
	"context"
	"sync"
	"time"

	"github.com/perugo/reservation-engine/plan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	plans   map[string][]plan.Plan
	owners  map[plan.ID]string
	cached  map[string][]plan.Plan
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		plans:   make(map[string][]plan.Plan),
		owners:  make(map[plan.ID]string),
		cached:  make(map[string][]plan.Plan),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = NormalizeEmail(u.Email)
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) UpdateUsername(_ context.Context, id, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.Username = username
	m.users[id] = u
	return u, nil
}

// =============================================================================
// PLANS
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, owner string, p plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.owners[p.ID]; ok && o != owner {
		return &plan.NotFoundError{ID: p.ID}
	}
	if i := m.indexLocked(owner, p.ID); i >= 0 {
		m.plans[owner][i] = p.Clone()
		return nil
	}
	m.plans[owner] = append(m.plans[owner], p.Clone())
	m.owners[p.ID] = owner
	return nil
}

func (m *Memory) ListPlans(_ context.Context, owner string) ([]plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]plan.Plan, len(m.plans[owner]))
	for i, p := range m.plans[owner] {
		result[i] = p.Clone()
	}
	return result, nil
}

func (m *Memory) GetPlan(_ context.Context, owner string, id plan.ID) (plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexLocked(owner, id)
	if i < 0 {
		return plan.Plan{}, &plan.NotFoundError{ID: id}
	}
	return m.plans[owner][i].Clone(), nil
}

func (m *Memory) DeletePlan(_ context.Context, owner string, id plan.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(owner, id)
	if i < 0 {
		return &plan.NotFoundError{ID: id}
	}
	plans := m.plans[owner]
	m.plans[owner] = append(plans[:i:i], plans[i+1:]...)
	delete(m.owners, id)
	return nil
}

// =============================================================================
// CLIENT CACHE
// =============================================================================

// MemoryCache is one owner's offline collection. It lives as long as the
// Memory that made it.
type MemoryCache struct {
	parent *Memory
	owner  string
}

func (m *Memory) ForOwner(owner string) *MemoryCache {
	return &MemoryCache{parent: m, owner: owner}
}

func (c *MemoryCache) SavePlans(_ context.Context, plans []plan.Plan) error {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()

	snapshot := make([]plan.Plan, len(plans))
	for i, p := range plans {
		snapshot[i] = p.Clone()
	}
	c.parent.cached[c.owner] = snapshot
	return nil
}

func (c *MemoryCache) CachedPlans(_ context.Context) ([]plan.Plan, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	result := make([]plan.Plan, len(c.parent.cached[c.owner]))
	for i, p := range c.parent.cached[c.owner] {
		result[i] = p.Clone()
	}
	return result, nil
}

func (m *Memory) indexLocked(owner string, id plan.ID) int {
	for i, p := range m.plans[owner] {
		if p.ID == id {
			return i
		}
	}
	return -1
}
