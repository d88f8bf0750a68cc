package memory

import (
	"context"
	"sync"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// LocationHistory is the history sink used when no database is configured.
type LocationHistory struct {
	mu      sync.Mutex
	records []entity.LocationHistoryRecord
}

func NewLocationHistory() *LocationHistory {
	return &LocationHistory{}
}

func (h *LocationHistory) Append(ctx context.Context, records []entity.LocationHistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.records = append(h.records, records...)
	h.mu.Unlock()
	return nil
}

func (h *LocationHistory) Records() []entity.LocationHistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]entity.LocationHistoryRecord(nil), h.records...)
}
