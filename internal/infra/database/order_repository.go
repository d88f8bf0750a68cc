package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const orderColumns = `id, driver_id, status, priority, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon,
	time_start, time_end, price, distance_meters, duration_seconds, geometry, route_pending,
	arrived_at, started_at, end_time, cancelled_at, cancellation_reason, version, created_at, updated_at`

var (
	activeStatuses   = pq.Array([]string{string(entity.StatusAssigned), string(entity.StatusDriverArrived), string(entity.StatusInProgress)})
	terminalStatuses = pq.Array([]string{string(entity.StatusCompleted), string(entity.StatusCancelled)})
)

type OrderRepositoryImpl struct {
	q querier
	// onCommit collects version bumps to apply once the transaction commits.
	onCommit *[]func()
}

func NewOrderRepository(db *sql.DB) *OrderRepositoryImpl {
	return &OrderRepositoryImpl{q: db}
}

func (r *OrderRepositoryImpl) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, entity.ErrOrderNotFound)
	}
	return o, err
}

func (r *OrderRepositoryImpl) ListActive(ctx context.Context) ([]*entity.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE NOT (status = ANY($1)) ORDER BY time_start, id`, terminalStatuses)
}

func (r *OrderRepositoryImpl) ListRoutePending(ctx context.Context, limit int) ([]*entity.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE route_pending AND NOT (status = ANY($1)) ORDER BY created_at, id LIMIT $2`, terminalStatuses, limit)
}

func (r *OrderRepositoryImpl) HasActiveBookingAt(ctx context.Context, driverID string, at time.Time) (bool, error) {
	var busy bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE driver_id = $1 AND status = ANY($2) AND time_start <= $3 AND $3 < time_end)`,
		driverID, activeStatuses, at.UTC()).Scan(&busy)
	return busy, err
}

func (r *OrderRepositoryImpl) FindOverlapping(ctx context.Context, driverID string, window entity.TimeWindow, excludeOrderID string) (*entity.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE driver_id = $1 AND id <> $2 AND status = ANY($3)
		  AND time_start < $5 AND $4 < time_end
		ORDER BY time_start LIMIT 1`,
		driverID, excludeOrderID, activeStatuses, window.Start.UTC(), window.End.UTC())
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *OrderRepositoryImpl) Insert(ctx context.Context, order *entity.Order) error {
	s := order.Snapshot()
	route := routeColumns(s.Route)
	_, err := r.q.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1,$21,$22)`,
		s.ID, nullString(s.DriverID), s.Status, s.Priority,
		s.Pickup.Lat, s.Pickup.Lon, s.Dropoff.Lat, s.Dropoff.Lon,
		s.TimeStart.UTC(), s.TimeEnd.UTC(), nullFloat(s.Price),
		route.distance, route.duration, route.geometry, s.RoutePending,
		s.ArrivedAt, s.StartedAt, s.EndTime, s.CancelledAt, nullString(s.CancellationReason),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return translate(err, order.DriverID())
	}
	r.after(func() { order.Committed(1) })
	return nil
}

func (r *OrderRepositoryImpl) Update(ctx context.Context, order *entity.Order) error {
	s := order.Snapshot()
	route := routeColumns(s.Route)
	res, err := r.q.ExecContext(ctx, `UPDATE orders SET
		driver_id = $3, status = $4, priority = $5, time_start = $6, time_end = $7,
		price = $8, distance_meters = $9, duration_seconds = $10, geometry = $11, route_pending = $12,
		arrived_at = $13, started_at = $14, end_time = $15, cancelled_at = $16, cancellation_reason = $17,
		updated_at = $18, version = version + 1
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version, nullString(s.DriverID), s.Status, s.Priority, s.TimeStart.UTC(), s.TimeEnd.UTC(),
		nullFloat(s.Price), route.distance, route.duration, route.geometry, s.RoutePending,
		s.ArrivedAt, s.StartedAt, s.EndTime, s.CancelledAt, nullString(s.CancellationReason),
		s.UpdatedAt.UTC(),
	)
	if err != nil {
		return translate(err, order.DriverID())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, s.ID); err != nil {
			return err
		}
		return fmt.Errorf("order %s at version %d: %w", s.ID, s.Version, entity.ErrConcurrentModification)
	}
	next := s.Version + 1
	r.after(func() { order.Committed(next) })
	return nil
}

func (r *OrderRepositoryImpl) after(fn func()) {
	if r.onCommit == nil {
		fn()
		return
	}
	*r.onCommit = append(*r.onCommit, fn)
}

func (r *OrderRepositoryImpl) list(ctx context.Context, query string, args ...any) ([]*entity.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*entity.Order, error) {
	var (
		s                                  entity.OrderSnapshot
		status                             string
		driverID, geometry, reason         sql.NullString
		price, distance, duration          sql.NullFloat64
		arrived, started, ended, cancelled sql.NullTime
	)
	err := row.Scan(
		&s.ID, &driverID, &status, &s.Priority,
		&s.Pickup.Lat, &s.Pickup.Lon, &s.Dropoff.Lat, &s.Dropoff.Lon,
		&s.TimeStart, &s.TimeEnd, &price, &distance, &duration, &geometry, &s.RoutePending,
		&arrived, &started, &ended, &cancelled, &reason, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = entity.Status(status)
	s.TimeStart, s.TimeEnd = s.TimeStart.UTC(), s.TimeEnd.UTC()
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	if driverID.Valid {
		s.DriverID = &driverID.String
	}
	if reason.Valid {
		s.CancellationReason = &reason.String
	}
	if price.Valid {
		s.Price = &price.Float64
	}
	if distance.Valid && duration.Valid {
		s.Route = &entity.Route{DistanceMeters: distance.Float64, DurationSeconds: duration.Float64, Geometry: geometry.String}
	}
	s.ArrivedAt = nullTime(arrived)
	s.StartedAt = nullTime(started)
	s.EndTime = nullTime(ended)
	s.CancelledAt = nullTime(cancelled)
	return entity.RestoreOrder(s), nil
}

type routeCols struct {
	distance, duration sql.NullFloat64
	geometry           sql.NullString
}

func routeColumns(r *entity.Route) routeCols {
	if r == nil {
		return routeCols{}
	}
	return routeCols{
		distance: sql.NullFloat64{Float64: r.DistanceMeters, Valid: true},
		duration: sql.NullFloat64{Float64: r.DurationSeconds, Valid: true},
		geometry: sql.NullString{String: r.Geometry, Valid: r.Geometry != ""},
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
