package location

import (
	"context"
	"fmt"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
)

// FlushWorker copies changed positions from the hot store into history.
// It only reads snapshots, so it never contends with Update. Ticks must not
// overlap; the job scheduler guarantees that.
type FlushWorker struct {
	store   outbound.LocationStore
	history outbound.LocationHistoryRepository
	log     logger.Logger
	metrics metrics.Metrics

	// lastFlushed is owned by the goroutine running Tick.
	lastFlushed map[string]entity.DriverLocation
}

func NewFlushWorker(store outbound.LocationStore, history outbound.LocationHistoryRepository, log logger.Logger, m metrics.Metrics) *FlushWorker {
	return &FlushWorker{
		store:       store,
		history:     history,
		log:         log.With(logger.String("component", "location_flush")),
		metrics:     m,
		lastFlushed: make(map[string]entity.DriverLocation),
	}
}

// Tick writes one record per driver whose position moved since the last
// successful tick. On failure nothing is marked as flushed, so the next tick
// retries the same drivers.
func (w *FlushWorker) Tick(ctx context.Context) (int, error) {
	snap, err := w.store.Snapshot(ctx)
	if err != nil {
		w.metrics.RecordFlushFailure()
		return 0, fmt.Errorf("snapshot hot store: %w", err)
	}

	w.forgetMissing(snap)

	batch := make([]entity.LocationHistoryRecord, 0, len(snap))
	changed := make([]entity.DriverLocation, 0, len(snap))
	for _, loc := range snap {
		if prev, ok := w.lastFlushed[loc.DriverID]; ok && prev.SamePosition(loc) {
			continue
		}
		batch = append(batch, loc.HistoryRecord())
		changed = append(changed, loc)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := w.history.Append(ctx, batch); err != nil {
		w.metrics.RecordFlushFailure()
		w.log.Warn(ctx, "location history flush failed, retrying next tick",
			logger.Int("records", len(batch)),
			logger.WithError(err),
		)
		return 0, err
	}

	for _, loc := range changed {
		w.lastFlushed[loc.DriverID] = loc
	}
	w.metrics.AddLocationHistoryFlushed(len(batch))
	w.log.Debug(ctx, "location history flushed", logger.Int("records", len(batch)))
	return len(batch), nil
}

// forgetMissing drops baselines for drivers that were removed or expired, so
// a driver that comes back is recorded even at its old position.
func (w *FlushWorker) forgetMissing(snap []entity.DriverLocation) {
	if len(w.lastFlushed) == 0 {
		return
	}
	present := make(map[string]struct{}, len(snap))
	for _, loc := range snap {
		present[loc.DriverID] = struct{}{}
	}
	for id := range w.lastFlushed {
		if _, ok := present[id]; !ok {
			delete(w.lastFlushed, id)
		}
	}
}
