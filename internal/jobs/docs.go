// Package jobs runs the periodic background work of the dispatch service on
// github.com/robfig/cron/v3.
//
// # Available Jobs
//
//  1. location-flush copies moved driver positions from the hot store into
//     the durable location history.
//  2. reroute prices orders committed while the routing engine was down.
//
// # Usage
//
//	manager := jobs.NewManager(logger)
//	_ = manager.Add("location-flush", cfg.FlushSchedule, flushWorker)
//	_ = manager.Add("reroute", cfg.RerouteSchedule, rerouter)
//	manager.Start()
//	defer manager.Stop(shutdownCtx)
//
// # Scheduling
//
// Runs of the same job never overlap: a tick that fires while the previous
// one is still running is skipped. Stop cancels the context handed to
// running ticks and waits for them to return.
package jobs
