// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/logging"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// IntegrityHandlerConfig configures the circuit breaker wrapped around the
// external integrity checker, following the same shape as the resilient
// stream reader's breaker settings.
type IntegrityHandlerConfig struct {
	Mode        models.IntegrityMode
	Timeout     time.Duration
	BreakerOpen time.Duration
	WorkerName  string
}

// integrityCheckResult bundles the checker's two return values so a single
// generic CircuitBreaker[T] can carry both through Execute.
type integrityCheckResult struct {
	status ExternalIntegrityStatus
	score  *float64
}

// IntegrityHandler checks whether a due entry's integrity lease can be
// acquired, invokes the external checker under a circuit breaker, and
// releases the lease with the observed outcome.
type IntegrityHandler struct {
	store    *store.Store
	checker  IntegrityChecker
	cfg      IntegrityHandlerConfig
	breaker  *gobreaker.CircuitBreaker[integrityCheckResult]
	recorder *metrics.Recorder
}

// NewIntegrityHandler wires the external checker behind a circuit breaker
// named "integrity-checker" so a flapping or hung checker degrades to fast
// failures instead of stalling every worker against its full Timeout.
func NewIntegrityHandler(st *store.Store, checker IntegrityChecker, cfg IntegrityHandlerConfig, recorder *metrics.Recorder) *IntegrityHandler {
	settings := gobreaker.Settings{
		Name:        "integrity-checker",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &IntegrityHandler{
		store:    st,
		checker:  checker,
		cfg:      cfg,
		breaker:  gobreaker.NewCircuitBreaker[integrityCheckResult](settings),
		recorder: recorder,
	}
}

func (h *IntegrityHandler) Handle(ctx context.Context, task Task) (Result, error) {
	e := task.Entry

	acquired, err := h.store.AcquireLease(e.Path, h.cfg.WorkerName, h.cfg.Timeout, task.NowMono, task.NowWall)
	if err != nil {
		return Result{Retryable: true}, fmt.Errorf("acquire lease %s: %w", e.Path, err)
	}
	if !acquired {
		return Result{Retryable: false, Message: "lease contention"}, nil
	}
	// Self-expiring schedule: the entry comes due again when the lease runs out.
	if err := h.store.SetNextCheckAt(e.Path, task.NowWall.Add(h.cfg.Timeout).Unix(), task.NowWall); err != nil {
		return Result{Retryable: true}, fmt.Errorf("set lease-expiry next check %s: %w", e.Path, err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	checkResult, checkErr := h.breaker.Execute(func() (integrityCheckResult, error) {
		status, score, err := h.checker.CheckVideoIntegrity(checkCtx, e.Path, h.cfg.Mode)
		return integrityCheckResult{status: status, score: score}, err
	})

	nowWall := task.NowWall
	if checkErr != nil {
		msg := checkErr.Error()
		if _, err := h.store.ReleaseLease(e.Path, h.cfg.WorkerName, models.IntegrityError, nil, nil, msg, nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("release lease (error) %s: %w", e.Path, err)
		}
		h.recorder.Increment("integrity_check.error", map[string]string{"path": e.Path})
		return Result{Retryable: true, Message: msg}, nil
	}

	status := convertIntegrityStatus(checkResult.status)
	score := checkResult.score
	mode := h.cfg.Mode
	errMsg := ""
	if status == models.IntegrityIncomplete {
		errMsg = "integrity check reported incomplete"
	}
	if _, err := h.store.ReleaseLease(e.Path, h.cfg.WorkerName, status, score, &mode, errMsg, nowWall); err != nil {
		return Result{Retryable: true}, fmt.Errorf("release lease (result) %s: %w", e.Path, err)
	}

	switch status {
	case models.IntegrityComplete:
		if err := h.store.SetNextCheckAt(e.Path, nowWall.Unix(), nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("reschedule after complete %s: %w", e.Path, err)
		}
		h.recorder.Increment("integrity_check.complete", map[string]string{"path": e.Path})
	case models.IntegrityIncomplete:
		h.recorder.Increment("integrity_check.incomplete", map[string]string{"path": e.Path})
		logging.Warn().Str("path", e.Path).Msg("integrity check reported incomplete file")
	case models.IntegrityError:
		h.recorder.Increment("integrity_check.error", map[string]string{"path": e.Path})
	}

	return Result{Retryable: status == models.IntegrityIncomplete || status == models.IntegrityError}, nil
}
