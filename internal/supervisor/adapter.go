// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import "context"

// StartStopper is satisfied by components with a non-blocking Start/Stop
// lifecycle, such as planner.Planner, rather than suture's blocking
// Serve(ctx) error shape.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// startStopAdapter makes a StartStopper usable as a suture.Service by
// blocking on ctx after Start returns, and calling Stop once ctx is done.
type startStopAdapter struct {
	name string
	svc  StartStopper
}

// Adapt wraps a StartStopper so it can be added to a supervisor tree
// alongside services that already implement Serve(ctx) error directly
// (such as discovery.Watcher).
func Adapt(name string, svc StartStopper) *startStopAdapter {
	return &startStopAdapter{name: name, svc: svc}
}

// Serve starts svc, blocks until ctx is canceled, then stops svc.
func (a *startStopAdapter) Serve(ctx context.Context) error {
	if err := a.svc.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := a.svc.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}

// String satisfies suture's optional fmt.Stringer for friendlier log lines.
func (a *startStopAdapter) String() string {
	return a.name
}
