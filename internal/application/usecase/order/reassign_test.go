package order

import (
	"context"
	"sync"
	"testing"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassign_AssignsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createInput("", 0, 30))
	require.NoError(t, err)

	start, end := window(0, 30)
	out, err := f.reassign.Execute(ctx, ReassignInput{OrderID: created.ID, DriverID: "driver-7", Start: start, End: end})

	require.NoError(t, err)
	assert.Equal(t, entity.StatusAssigned, out.Status)
	assert.Equal(t, created.Version+1, out.Version)
	evs := f.published.all()
	require.Len(t, evs, 2)
	assert.Equal(t, events.OrderUpdated, evs[1].Type)
}

func TestReassign_NotifiesPreviousAndNewDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createInput("driver-5", 0, 30))
	require.NoError(t, err)

	start, end := window(0, 30)
	_, err = f.reassign.Execute(ctx, ReassignInput{OrderID: created.ID, DriverID: "driver-6", Start: start, End: end})
	require.NoError(t, err)

	evs := f.published.all()
	assert.ElementsMatch(t, []string{"driver-6", "driver-5"}, evs[len(evs)-1].Audience)
}

func TestReassign_ShiftingOwnWindowIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createInput("driver-5", 0, 30))
	require.NoError(t, err)

	start, end := window(15, 45)
	out, err := f.reassign.Execute(ctx, ReassignInput{OrderID: created.ID, DriverID: "driver-5", Start: start, End: end})

	require.NoError(t, err)
	assert.Equal(t, start, out.TimeStart)
}

func TestReassign_ConflictWithTargetDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blocking, err := f.create.Execute(ctx, createInput("driver-6", 0, 30))
	require.NoError(t, err)
	moving, err := f.create.Execute(ctx, createInput("driver-5", 0, 30))
	require.NoError(t, err)

	start, end := window(20, 50)
	_, err = f.reassign.Execute(ctx, ReassignInput{OrderID: moving.ID, DriverID: "driver-6", Start: start, End: end})

	var conflict *entity.TimeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, blocking.ID, conflict.BlockingOrderID)

	stored, err := f.store.FindByID(ctx, moving.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-5", stored.DriverID())
}

func TestReassign_OnlyFromPendingOrAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createInput("driver-5", 0, 30))
	require.NoError(t, err)
	_, err = f.transition.Execute(ctx, TransitionInput{OrderID: created.ID, Target: entity.StatusDriverArrived})
	require.NoError(t, err)

	start, end := window(60, 90)
	_, err = f.reassign.Execute(ctx, ReassignInput{OrderID: created.ID, DriverID: "driver-6", Start: start, End: end})

	assert.ErrorIs(t, err, entity.ErrInvalidStateTransition)
}

func TestReassign_NoPathAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createInput("", 0, 30))
	require.NoError(t, err)
	f.engine.set(entity.Route{}, &entity.RouteNotFoundError{Pickup: pickup, Dropoff: dropoff})

	start, end := window(0, 30)
	_, err = f.reassign.Execute(ctx, ReassignInput{OrderID: created.ID, DriverID: "driver-5", Start: start, End: end})

	assert.ErrorIs(t, err, entity.ErrRouteNotFound)
	stored, _ := f.store.FindByID(ctx, created.ID)
	assert.Equal(t, entity.StatusPending, stored.Status())
}

func TestReassign_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	start, end := window(0, 30)

	_, err := f.reassign.Execute(context.Background(), ReassignInput{OrderID: "missing", DriverID: "driver-5", Start: start, End: end})

	assert.ErrorIs(t, err, entity.ErrOrderNotFound)
}

func TestReassign_ConcurrentOverlapsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 24

	ids := make([]string, n)
	for i := range ids {
		created, err := f.create.Execute(ctx, createInput("", 0, 30))
		require.NoError(t, err)
		ids[i] = created.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			from, to := window(i%5, 60+i%5)
			_, errs[i] = f.reassign.Execute(ctx, ReassignInput{OrderID: ids[i], DriverID: "driver-9", Start: from, End: to})
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrTimeConflict)
	}
	assert.Equal(t, 1, wins)

	board, err := NewListActiveUseCase(f.deps).Execute(ctx, ListActiveInput{DriverID: "driver-9"})
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, entity.StatusAssigned, board[0].Status)

	updates := 0
	for _, e := range f.published.all() {
		if e.Type == events.OrderUpdated {
			updates++
		}
	}
	assert.Equal(t, 1, updates, "only the committed reassign is broadcast")
}
