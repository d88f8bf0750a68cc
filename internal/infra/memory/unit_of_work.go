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

// driverLocks hands out one mutex per driver id. Entries are never removed;
// the set of drivers is bounded by the fleet.
type driverLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDriverLocks() *driverLocks {
	return &driverLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutexes of ids in sorted order and returns the release func.
func (d *driverLocks) lock(ids []string) func() {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	d.mu.Lock()
	for _, id := range uniq {
		m, ok := d.locks[id]
		if !ok {
			m = &sync.Mutex{}
			d.locks[id] = m
		}
		held = append(held, m)
	}
	d.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Do serializes units per driver id and applies staged writes all at once,
// checking versions, when fn returns nil.
func (s *OrderStore) Do(ctx context.Context, driverIDs []string, fn func(provider outbound.RepositoryProvider) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release := s.drivers.lock(driverIDs)
	defer release()

	tx := &txRepository{store: s, staged: make(map[string]*entity.Order)}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type txRepository struct {
	store  *OrderStore
	staged  map[string]*entity.Order
	created []*entity.Order
	updates []*entity.Order
}

func (t *txRepository) Order() outbound.OrderRepository { return t }

func (t *txRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	if o, ok := t.staged[id]; ok {
		return o.Clone(), nil
	}
	return t.store.FindByID(ctx, id)
}

func (t *txRepository) ListActive(ctx context.Context) ([]*entity.Order, error) {
	return t.store.ListActive(ctx)
}

func (t *txRepository) ListRoutePending(ctx context.Context, limit int) ([]*entity.Order, error) {
	return t.store.ListRoutePending(ctx, limit)
}

func (t *txRepository) HasActiveBookingAt(ctx context.Context, driverID string, at time.Time) (bool, error) {
	return t.store.HasActiveBookingAt(ctx, driverID, at)
}

func (t *txRepository) FindOverlapping(_ context.Context, driverID string, window entity.TimeWindow, excludeOrderID string) (*entity.Order, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.overlapping(driverID, window, excludeOrderID, t.staged), nil
}

func (t *txRepository) Insert(_ context.Context, order *entity.Order) error {
	if _, ok := t.staged[order.ID()]; ok {
		return fmt.Errorf("order %s staged twice", order.ID())
	}
	t.staged[order.ID()] = order.Clone()
	t.created = append(t.created, order)
	return nil
}

func (t *txRepository) Update(_ context.Context, order *entity.Order) error {
	t.staged[order.ID()] = order.Clone()
	t.updates = append(t.updates, order)
	return nil
}

func (t *txRepository) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range t.created {
		if _, exists := s.orders[o.ID()]; exists {
			return fmt.Errorf("order %s already exists", o.ID())
		}
	}
	for _, o := range t.updates {
		stored, ok := s.orders[o.ID()]
		if !ok {
			return fmt.Errorf("order %s: %w", o.ID(), entity.ErrOrderNotFound)
		}
		if stored.Version() != o.Version() {
			return fmt.Errorf("order %s at version %d: %w", o.ID(), o.Version(), entity.ErrConcurrentModification)
		}
	}

	for _, o := range t.created {
		o.Committed(1)
		s.orders[o.ID()] = o.Clone()
	}
	for _, o := range t.updates {
		o.Committed(o.Version() + 1)
		s.orders[o.ID()] = o.Clone()
	}
	return nil
}
