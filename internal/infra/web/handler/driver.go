package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/DioGolang/FleetDispatch/internal/application/usecase/location"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/web/middleware"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type LocationService interface {
	Update(ctx context.Context, in location.UpdateInput) (entity.DriverLocation, error)
	Status(ctx context.Context, driverID string) (location.StatusOutput, error)
	Statuses(ctx context.Context) ([]location.StatusOutput, error)
	Nearby(ctx context.Context, center entity.Coordinates, radiusKm float64, limit int) ([]location.StatusOutput, error)
}

type Driver struct {
	Locations LocationService
	Log       logger.Logger
}

func (h *Driver) Routes(r chi.Router) {
	r.With(middleware.StaffOnly).Get("/locations", h.locations)
	r.With(middleware.StaffOnly).Get("/nearby", h.nearby)
	r.Put("/{id}/location", h.updateLocation)
	r.Get("/{id}/status", h.status)
}

func (h *Driver) updateLocation(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "id")
	if caller, _ := middleware.CallerFrom(r.Context()); !caller.CanActAs(driverID) {
		writeError(w, r, h.Log, entity.ErrForbidden)
		return
	}
	var in location.UpdateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in.DriverID = driverID

	loc, err := h.Locations.Update(r.Context(), in)
	if err != nil {
		if location.IsStale(err) {
			status, body := statusFor(err)
			body.Current = loc
			writeJSON(w, status, body)
			return
		}
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Driver) status(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "id")
	if caller, _ := middleware.CallerFrom(r.Context()); !caller.CanActAs(driverID) {
		writeError(w, r, h.Log, entity.ErrForbidden)
		return
	}
	out, err := h.Locations.Status(r.Context(), driverID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Driver) locations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Locations.Statuses(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Driver) nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), "lat", 0, true)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	lon, err := floatParam(q.Get("lon"), "lon", 0, true)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	radius, err := floatParam(q.Get("radius_km"), "radius_km", 5, false)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	limit := 20
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, r, h.Log, entity.NewValidationError("limit", "must be an integer in [1, 500]"))
			return
		}
		limit = n
	}

	out, err := h.Locations.Nearby(r.Context(), entity.Coordinates{Lat: lat, Lon: lon}, radius, limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func floatParam(raw, name string, def float64, required bool) (float64, error) {
	if raw == "" {
		if required {
			return 0, entity.NewValidationError(name, "is required")
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, entity.NewValidationError(name, "must be a number")
	}
	return v, nil
}
