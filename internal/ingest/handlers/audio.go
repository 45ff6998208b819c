// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// AudioHandlerConfig configures the circuit breaker wrapped around the
// external audio prober.
type AudioHandlerConfig struct {
	Timeout     time.Duration
	BreakerOpen time.Duration
}

// AudioHandler implements ProcessAudio (SPEC_FULL.md §5.7 / spec §4.7): it
// probes for an existing qualifying English stereo stream, and failing that,
// for an English multichannel stream worth converting.
type AudioHandler struct {
	store    *store.Store
	prober   AudioProber
	cfg      AudioHandlerConfig
	breaker  *gobreaker.CircuitBreaker[[]AudioStream]
	recorder *metrics.Recorder
}

func NewAudioHandler(st *store.Store, prober AudioProber, cfg AudioHandlerConfig, recorder *metrics.Recorder) *AudioHandler {
	settings := gobreaker.Settings{
		Name:        "audio-prober",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &AudioHandler{
		store:    st,
		prober:   prober,
		cfg:      cfg,
		breaker:  gobreaker.NewCircuitBreaker[[]AudioStream](settings),
		recorder: recorder,
	}
}

func (h *AudioHandler) Handle(ctx context.Context, task Task) (Result, error) {
	e := task.Entry

	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	streams, err := h.breaker.Execute(func() ([]AudioStream, error) {
		return h.prober.ProbeAudioStreams(probeCtx, e.Path)
	})
	if err != nil {
		return Result{Retryable: true}, fmt.Errorf("probe audio streams %s: %w", e.Path, err)
	}

	qualifying := false
	multichannel := false
	for _, st := range streams {
		if !isEnglish(st.Language, st.Title) {
			continue
		}
		switch {
		case st.Channels == 2:
			qualifying = true
		case st.Channels > 2:
			multichannel = true
		}
	}

	nowWall := task.NowWall
	switch {
	case qualifying:
		hasEN2 := true
		if err := h.store.UpdateProcessedStatus(e.Path, models.ProcessedSkippedHasEn2, &hasEN2, "", nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("mark skipped-has-en2 %s: %w", e.Path, err)
		}
		if err := h.store.SetNextCheckAt(e.Path, nowWall.Add(365*24*time.Hour).Unix(), nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("park %s: %w", e.Path, err)
		}
		h.recorder.Increment("audio_probe.skipped_has_en2", map[string]string{"path": e.Path})
	case multichannel:
		if err := h.store.SetHasEN2(e.Path, false, nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("mark ready-for-conversion %s: %w", e.Path, err)
		}
		h.recorder.Increment("audio_probe.ready_for_conversion", map[string]string{"path": e.Path})
	default:
		if err := h.store.UpdateProcessedStatus(e.Path, models.ProcessedIgnored, nil, "no qualifying or convertible english audio stream", nowWall); err != nil {
			return Result{Retryable: true}, fmt.Errorf("mark ignored %s: %w", e.Path, err)
		}
		h.recorder.Increment("audio_probe.ignored", map[string]string{"path": e.Path})
	}

	return Result{Retryable: false}, nil
}

// isEnglish applies the language/title heuristic from spec §4.7.
func isEnglish(language, title string) bool {
	language = strings.ToLower(strings.TrimSpace(language))
	switch language {
	case "eng", "en", "english":
		return true
	}
	title = strings.ToLower(title)
	return strings.Contains(title, "eng") || strings.Contains(title, "english")
}
