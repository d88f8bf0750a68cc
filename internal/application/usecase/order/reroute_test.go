package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/memory"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerouter_PricesDegradedOrdersOnceEngineRecovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.set(entity.Route{}, errors.New("connection refused"))
	created, err := f.create.Execute(ctx, createInput("", 0, 30))
	require.NoError(t, err)
	require.True(t, created.RoutePending)

	r := NewRerouter(f.deps, memory.NewClaimer(), 10, time.Minute)

	n, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "engine still down, order stays pending")

	f.engine.set(entity.Route{DistanceMeters: 5000, DurationSeconds: 900}, nil)
	n, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.RoutePending())
	require.NotNil(t, stored.Price())
	assert.InDelta(t, 17.5, *stored.Price(), 1e-9)

	evs := f.published.all()
	last := evs[len(evs)-1]
	assert.Equal(t, events.OrderUpdated, last.Type)
	assert.Equal(t, stored.Version(), last.Version)

	n, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRerouter_SkipsOrdersClaimedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.set(entity.Route{}, errors.New("timeout"))
	created, err := f.create.Execute(ctx, createInput("", 0, 30))
	require.NoError(t, err)
	f.engine.set(entity.Route{DistanceMeters: 1000, DurationSeconds: 60}, nil)

	claimer := memory.NewClaimer()
	ok, err := claimer.Claim(ctx, created.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := NewRerouter(f.deps, claimer, 10, time.Minute).Tick(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	stored, _ := f.store.FindByID(ctx, created.ID)
	assert.True(t, stored.RoutePending())
}

func TestRerouter_CancelledOrdersAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.set(entity.Route{}, errors.New("timeout"))
	created, err := f.create.Execute(ctx, createInput("", 0, 30))
	require.NoError(t, err)
	_, err = f.transition.Execute(ctx, TransitionInput{OrderID: created.ID, Target: entity.StatusCancelled, Reason: "no longer needed"})
	require.NoError(t, err)
	f.engine.set(entity.Route{DistanceMeters: 1000, DurationSeconds: 60}, nil)

	n, err := NewRerouter(f.deps, nil, 10, time.Minute).Tick(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
}
