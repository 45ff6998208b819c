// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor wires the planner loop and the optional fsnotify
// watcher into a thejerf/suture/v4 supervisor tree, so a panic or returned
// error in one restarts it without taking the rest of the process down
// (SPEC_FULL.md §6.1).
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns production-ready defaults, matching suture's own
// built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is organized into the three failure domains named in SPEC_FULL.md
// §6.1: core (the planner loop and its maintenance ticker), intake (the
// optional fsnotify watcher), and status (the optional chi HTTP surface).
// A crash in one layer never stops the others.
type Tree struct {
	root   *suture.Supervisor
	core   *suture.Supervisor
	intake *suture.Supervisor
	status *suture.Supervisor
	config TreeConfig
}

// New creates a supervisor tree, reporting suture's own start/stop/panic
// events through a slog.Logger independent of the ingest core's zerolog
// singleton (sutureslog.Handler speaks log/slog, not zerolog).
func New(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("stereoingest", rootSpec)
	core := suture.New("core", childSpec)
	intake := suture.New("intake", childSpec)
	status := suture.New("status", childSpec)
	root.Add(core)
	root.Add(intake)
	root.Add(status)

	return &Tree{root: root, core: core, intake: intake, status: status, config: config}
}

// AddCoreService adds a service to the core layer (planner, maintenance).
func (t *Tree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.core.Add(svc)
}

// AddIntakeService adds a service to the intake layer (discovery watcher).
func (t *Tree) AddIntakeService(svc suture.Service) suture.ServiceToken {
	return t.intake.Add(svc)
}

// AddStatusService adds a service to the status layer (the HTTP surface).
func (t *Tree) AddStatusService(svc suture.Service) suture.ServiceToken {
	return t.status.Add(svc)
}

// Serve starts the tree and blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}
