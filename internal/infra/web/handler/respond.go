package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

type errorBody struct {
	Error           string             `json:"error"`
	Code            string             `json:"code"`
	Field           string             `json:"field,omitempty"`
	BlockingOrderID string             `json:"blocking_order_id,omitempty"`
	BlockingWindow  *entity.TimeWindow `json:"blocking_window,omitempty"`
	Current         any                `json:"current,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return entity.NewValidationError("body", err.Error())
	}
	return nil
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		validation *entity.ValidationError
		conflict   *entity.TimeConflictError
		transition *entity.InvalidTransitionError
		stale      *entity.StaleUpdateError
		noRoute    *entity.RouteNotFoundError
		down       *entity.RoutingUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		body.Code, body.Field = "validation", validation.Field
		return http.StatusBadRequest, body
	case errors.Is(err, entity.ErrForbidden):
		body.Code = "forbidden"
		return http.StatusForbidden, body
	case errors.Is(err, entity.ErrOrderNotFound):
		body.Code = "not_found"
		return http.StatusNotFound, body
	case errors.As(err, &conflict):
		body.Code = "time_conflict"
		body.BlockingOrderID = conflict.BlockingOrderID
		w := conflict.BlockingWindow
		body.BlockingWindow = &w
		return http.StatusConflict, body
	case errors.As(err, &transition):
		body.Code = "invalid_transition"
		return http.StatusConflict, body
	case errors.As(err, &stale):
		body.Code = "stale_update"
		return http.StatusConflict, body
	case errors.Is(err, entity.ErrConcurrentModification):
		body.Code = "concurrent_modification"
		return http.StatusConflict, body
	case errors.As(err, &noRoute):
		body.Code = "no_route"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &down):
		body.Code = "routing_unavailable"
		return http.StatusServiceUnavailable, body
	}
	body.Code, body.Error = "internal", "internal error"
	return http.StatusInternalServerError, body
}

func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.WithError(err))
	}
	writeJSON(w, status, body)
}
