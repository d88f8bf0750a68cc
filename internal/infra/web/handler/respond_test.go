package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{entity.NewValidationError("pickup", "bad"), http.StatusBadRequest, "validation"},
		{fmt.Errorf("transition: %w", entity.ErrForbidden), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("get: %w", entity.ErrOrderNotFound), http.StatusNotFound, "not_found"},
		{&entity.TimeConflictError{DriverID: "d", BlockingOrderID: "o"}, http.StatusConflict, "time_conflict"},
		{&entity.InvalidTransitionError{From: entity.StatusCompleted, To: entity.StatusCancelled}, http.StatusConflict, "invalid_transition"},
		{&entity.StaleUpdateError{DriverID: "d"}, http.StatusConflict, "stale_update"},
		{entity.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
		{&entity.RouteNotFoundError{}, http.StatusUnprocessableEntity, "no_route"},
		{&entity.RoutingUnavailableError{Attempts: 2, Err: errors.New("timeout")}, http.StatusServiceUnavailable, "routing_unavailable"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := statusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.name, body.Code)
		})
	}
}

func TestStatusFor_HidesInternalDetail(t *testing.T) {
	_, body := statusFor(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal error", body.Error)
}
