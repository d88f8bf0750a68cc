package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

type RepositoryProviderImpl struct {
	orders *OrderRepositoryImpl
}

func (p *RepositoryProviderImpl) Order() outbound.OrderRepository {
	return p.orders
}

// UnitOfWorkImpl serializes units per driver with a session advisory lock
// taken before the SERIALIZABLE transaction begins, so the transaction's
// snapshot already contains the previous holder's commit. The exclusion
// constraint backs the in-transaction overlap scan.
type UnitOfWorkImpl struct {
	db  *sql.DB
	log logger.Logger
}

func NewUnitOfWork(db *sql.DB, log logger.Logger) *UnitOfWorkImpl {
	return &UnitOfWorkImpl{db: db, log: log}
}

// Do retries once when Postgres aborts the transaction as a serialization
// failure or deadlock victim; fn must therefore re-read what it writes.
func (u *UnitOfWorkImpl) Do(ctx context.Context, driverIDs []string, fn func(provider outbound.RepositoryProvider) error) error {
	const attempts = 2
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = u.run(ctx, driverIDs, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		u.log.Warn(ctx, "transaction aborted by concurrent writer",
			logger.Int("attempt", attempt),
			logger.WithError(err),
		)
	}
	return err
}

func (u *UnitOfWorkImpl) run(ctx context.Context, driverIDs []string, fn func(provider outbound.RepositoryProvider) error) error {
	conn, err := u.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ids := lockOrder(driverIDs)
	for i, id := range ids {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, id); err != nil {
			u.unlock(ctx, conn, ids[:i])
			return fmt.Errorf("lock driver %s: %w", id, err)
		}
	}
	defer u.unlock(ctx, conn, ids)

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	var onCommit []func()
	provider := &RepositoryProviderImpl{
		orders: &OrderRepositoryImpl{q: tx, onCommit: &onCommit},
	}

	if err := fn(provider); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w, rb err: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, f := range onCommit {
		f()
	}
	return nil
}

// unlock releases session locks. A connection that cannot confirm the
// release is discarded so the server drops its locks with the session.
func (u *UnitOfWorkImpl) unlock(ctx context.Context, conn *sql.Conn, ids []string) {
	ctx = context.WithoutCancel(ctx)
	for i := len(ids) - 1; i >= 0; i-- {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, ids[i]); err != nil {
			u.log.Error(ctx, "advisory unlock failed, discarding connection",
				logger.String("driver_id", ids[i]),
				logger.WithError(err),
			)
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			return
		}
	}
}

// lockOrder dedupes and sorts ids so concurrent units lock in the same order.
func lockOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
