package app

import (
	"github.com/DioGolang/FleetDispatch/configs"
	"github.com/DioGolang/FleetDispatch/internal/application/usecase/location"
	"github.com/DioGolang/FleetDispatch/internal/application/usecase/order"
	"github.com/DioGolang/FleetDispatch/internal/jobs"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
)

// NewScheduler registers the location flush and re-route sweeps.
func NewScheduler(cfg *configs.Conf, deps order.Dependencies, in *Infra, log logger.Logger, m metrics.Metrics) (*jobs.Manager, error) {
	manager := jobs.NewManager(log)
	flush := location.NewFlushWorker(in.Locations, in.History, log, m)
	if err := manager.Add("location-flush", cfg.FlushSchedule, flush); err != nil {
		return nil, err
	}
	rerouter := order.NewRerouter(deps, in.Reroute, cfg.RerouteBatch, cfg.RerouteClaimTTL)
	if err := manager.Add("reroute", cfg.RerouteSchedule, rerouter); err != nil {
		return nil, err
	}
	return manager, nil
}
