package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// OrderStore keeps orders in process. Stored values are private clones so
// callers can never mutate committed state behind the store's back.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*entity.Order
	drivers *driverLocks
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:  make(map[string]*entity.Order),
		drivers: newDriverLocks(),
	}
}

func (s *OrderStore) FindByID(_ context.Context, id string) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, entity.ErrOrderNotFound)
	}
	return o.Clone(), nil
}

func (s *OrderStore) ListActive(_ context.Context) ([]*entity.Order, error) {
	return s.filter(func(o *entity.Order) bool { return !o.IsTerminal() }, 0, func(a, b *entity.Order) bool {
		return a.Window().Start.Before(b.Window().Start)
	}), nil
}

func (s *OrderStore) ListRoutePending(_ context.Context, limit int) ([]*entity.Order, error) {
	return s.filter(func(o *entity.Order) bool { return o.RoutePending() && !o.IsTerminal() }, limit, func(a, b *entity.Order) bool {
		return a.CreatedAt().Before(b.CreatedAt())
	}), nil
}

func (s *OrderStore) HasActiveBookingAt(_ context.Context, driverID string, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OccupiesDriver(driverID) && o.Window().Contains(at) {
			return true, nil
		}
	}
	return false, nil
}

func (s *OrderStore) FindOverlapping(_ context.Context, driverID string, window entity.TimeWindow, excludeOrderID string) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlapping(driverID, window, excludeOrderID, nil), nil
}

func (s *OrderStore) Insert(ctx context.Context, order *entity.Order) error {
	return s.Do(ctx, nil, func(p outbound.RepositoryProvider) error {
		return p.Order().Insert(ctx, order)
	})
}

func (s *OrderStore) Update(ctx context.Context, order *entity.Order) error {
	return s.Do(ctx, nil, func(p outbound.RepositoryProvider) error {
		return p.Order().Update(ctx, order)
	})
}

func (s *OrderStore) filter(keep func(*entity.Order) bool, limit int, less func(a, b *entity.Order) bool) []*entity.Order {
	s.mu.RLock()
	out := make([]*entity.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID() < out[j].ID()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// overlapping must run with s.mu held. staged entries shadow stored ones.
func (s *OrderStore) overlapping(driverID string, window entity.TimeWindow, excludeID string, staged map[string]*entity.Order) *entity.Order {
	check := func(o *entity.Order) *entity.Order {
		if o.ID() != excludeID && o.OccupiesDriver(driverID) && o.Window().Overlaps(window) {
			return o.Clone()
		}
		return nil
	}
	for id, o := range s.orders {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if hit := check(o); hit != nil {
			return hit
		}
	}
	for _, o := range staged {
		if hit := check(o); hit != nil {
			return hit
		}
	}
	return nil
}
