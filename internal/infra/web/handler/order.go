package handler

import (
	"net/http"

	"github.com/DioGolang/FleetDispatch/internal/application/usecase/order"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/web/middleware"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Order struct {
	Create     order.CreateUseCase
	Reassign   order.ReassignUseCase
	Transition order.TransitionUseCase
	Get        order.GetUseCase
	ListActive order.ListActiveUseCase
	Log        logger.Logger
}

// Routes mounts the order endpoints; create and reassign are staff only.
func (h *Order) Routes(r chi.Router) {
	r.With(middleware.StaffOnly).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(middleware.StaffOnly).Post("/{id}/reassign", h.reassign)
	r.Post("/{id}/transition", h.transition)
}

func (h *Order) create(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out, err := h.Create.Execute(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Order) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFrom(r.Context())
	in := order.ListActiveInput{DriverID: r.URL.Query().Get("driver_id")}
	if !caller.IsStaff() {
		in.DriverID = caller.DriverID
	}
	out, err := h.ListActive.Execute(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Order) get(w http.ResponseWriter, r *http.Request) {
	out, err := h.Get.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	caller, _ := middleware.CallerFrom(r.Context())
	if !caller.IsStaff() && (out.DriverID == nil || *out.DriverID != caller.DriverID) {
		writeError(w, r, h.Log, entity.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Order) reassign(w http.ResponseWriter, r *http.Request) {
	var in order.ReassignInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in.OrderID = chi.URLParam(r, "id")
	out, err := h.Reassign.Execute(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Order) transition(w http.ResponseWriter, r *http.Request) {
	var in order.TransitionInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in.OrderID = chi.URLParam(r, "id")
	if caller, _ := middleware.CallerFrom(r.Context()); !caller.IsStaff() {
		in.ActorDriverID = caller.DriverID
	}
	out, err := h.Transition.Execute(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
