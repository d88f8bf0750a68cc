package handler

import (
	"net/http"

	"github.com/DioGolang/FleetDispatch/internal/infra/web/middleware"
	"github.com/DioGolang/FleetDispatch/internal/infra/websocket"
)

type Realtime struct {
	Hub *websocket.Hub
}

func (h *Realtime) Subscribe(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFrom(r.Context())
	h.Hub.ServeWS(w, r, websocket.Viewer{Staff: caller.IsStaff(), DriverID: caller.DriverID})
}
