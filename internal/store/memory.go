package store

import (
	"context"
	"sync"
	"time"

	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// Memory keeps everything in process. It is used when no database is
// configured.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]types.UserProfile
	shoes    []types.ShoeSpec
	scans    map[string]Scan
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns a store whose catalog starts with specs
func NewMemory(specs []types.ShoeSpec) *Memory {
	return &Memory{
		profiles: make(map[string]types.UserProfile),
		shoes:    append([]types.ShoeSpec{}, specs...),
		scans:    make(map[string]Scan),
		now:      time.Now,
	}
}

func (m *Memory) GetProfile(ctx context.Context, userID string) (types.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return types.UserProfile{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) UpsertProfile(ctx context.Context, userID string, p types.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
	return nil
}

func (m *Memory) ListShoes(ctx context.Context) ([]types.ShoeSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.ShoeSpec{}, m.shoes...), nil
}

func (m *Memory) UpsertShoe(ctx context.Context, s types.ShoeSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := catalog.SpecKey(s)
	for i := range m.shoes {
		if catalog.SpecKey(m.shoes[i]) == key {
			m.shoes[i] = s
			return nil
		}
	}
	m.shoes = append(m.shoes, s)
	return nil
}

func (m *Memory) SaveScan(ctx context.Context, s Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.scans[s.RequestID] = s
	return nil
}

func (m *Memory) GetScan(ctx context.Context, requestID string) (Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scans[requestID]
	if !ok {
		return Scan{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() {}
