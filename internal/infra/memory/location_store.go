package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// LocationStore is lock-free: each driver owns an atomic pointer cell that
// writers advance with compare-and-swap, so snapshots never block updates.
// Cells are never deleted. Remove swaps in a tombstone that keeps the
// revision, so a writer racing a removal never lands on a detached cell and
// revisions keep increasing when the driver comes back.
type LocationStore struct {
	cells sync.Map // driver id -> *atomic.Pointer[slot]
}

type slot struct {
	loc     entity.DriverLocation
	removed bool
}

func NewLocationStore() *LocationStore {
	return &LocationStore{}
}

func (s *LocationStore) cell(driverID string) *atomic.Pointer[slot] {
	v, _ := s.cells.LoadOrStore(driverID, new(atomic.Pointer[slot]))
	return v.(*atomic.Pointer[slot])
}

func (s *LocationStore) Put(_ context.Context, loc entity.DriverLocation) (bool, entity.DriverLocation, error) {
	cell := s.cell(loc.DriverID)
	for {
		cur := cell.Load()
		var prev int64
		if cur != nil {
			if !cur.removed && loc.ObservedAt.Before(cur.loc.ObservedAt) {
				return false, cur.loc, nil
			}
			prev = cur.loc.Revision
		}
		next := &slot{loc: loc}
		next.loc.Revision = entity.NextRevision(prev, loc.ObservedAt)
		if cell.CompareAndSwap(cur, next) {
			return true, next.loc, nil
		}
	}
}

func (s *LocationStore) load(driverID string) (entity.DriverLocation, bool) {
	v, ok := s.cells.Load(driverID)
	if !ok {
		return entity.DriverLocation{}, false
	}
	cur := v.(*atomic.Pointer[slot]).Load()
	if cur == nil || cur.removed {
		return entity.DriverLocation{}, false
	}
	return cur.loc, true
}

func (s *LocationStore) Get(_ context.Context, driverID string) (entity.DriverLocation, bool, error) {
	loc, ok := s.load(driverID)
	return loc, ok, nil
}

func (s *LocationStore) Snapshot(_ context.Context) ([]entity.DriverLocation, error) {
	var out []entity.DriverLocation
	s.cells.Range(func(_, v any) bool {
		if cur := v.(*atomic.Pointer[slot]).Load(); cur != nil && !cur.removed {
			out = append(out, cur.loc)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (s *LocationStore) Nearest(ctx context.Context, center entity.Coordinates, radiusKm float64, limit int) ([]entity.DriverLocation, error) {
	all, _ := s.Snapshot(ctx)
	type hit struct {
		loc  entity.DriverLocation
		dist float64
	}
	hits := make([]hit, 0, len(all))
	for _, loc := range all {
		if d := center.DistanceKm(loc.Position()); d <= radiusKm {
			hits = append(hits, hit{loc: loc, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]entity.DriverLocation, len(hits))
	for i, h := range hits {
		out[i] = h.loc
	}
	return out, nil
}

func (s *LocationStore) Remove(_ context.Context, driverID string) error {
	v, ok := s.cells.Load(driverID)
	if !ok {
		return nil
	}
	cell := v.(*atomic.Pointer[slot])
	for {
		cur := cell.Load()
		if cur == nil || cur.removed {
			return nil
		}
		tomb := &slot{loc: entity.DriverLocation{DriverID: driverID, Revision: cur.loc.Revision}, removed: true}
		if cell.CompareAndSwap(cur, tomb) {
			return nil
		}
	}
}
