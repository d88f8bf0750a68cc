package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/lib/pq"
)

// LocationHistoryRepository bulk-loads flush batches with COPY.
type LocationHistoryRepository struct {
	db *sql.DB
}

func NewLocationHistoryRepository(db *sql.DB) *LocationHistoryRepository {
	return &LocationHistoryRepository{db: db}
}

func (r *LocationHistoryRepository) Append(ctx context.Context, records []entity.LocationHistoryRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("location_history", "driver_id", "lat", "lon", "recorded_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, rec := range records {
		if _, err = stmt.ExecContext(ctx, rec.DriverID, rec.Lat, rec.Lon, rec.RecordedAt.UTC()); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy row for %s: %w", rec.DriverID, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// CountForDriver is used by operators and tests to inspect the history.
func (r *LocationHistoryRepository) CountForDriver(ctx context.Context, driverID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM location_history WHERE driver_id = $1`, driverID).Scan(&n)
	return n, err
}
