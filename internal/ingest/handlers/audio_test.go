// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

type fakeAudioProber struct {
	streams []AudioStream
	err     error
}

func (f fakeAudioProber) ProbeAudioStreams(ctx context.Context, path string) ([]AudioStream, error) {
	return f.streams, f.err
}

func TestAudioHandlerSkipsWhenEnglishStereoPresent(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	prober := fakeAudioProber{streams: []AudioStream{{Language: "eng", Channels: 2}}}
	h := NewAudioHandler(st, prober, AudioHandlerConfig{Timeout: time.Second, BreakerOpen: time.Second}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessedSkippedHasEn2, got.ProcessedStatus)
	require.NotNil(t, got.HasEN2)
	assert.True(t, *got.HasEN2)
}

func TestAudioHandlerReadyForConversionOnEnglishMultichannel(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	prober := fakeAudioProber{streams: []AudioStream{{Language: "english", Channels: 6}}}
	h := NewAudioHandler(st, prober, AudioHandlerConfig{Timeout: time.Second, BreakerOpen: time.Second}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessedNew, got.ProcessedStatus)
	require.NotNil(t, got.HasEN2)
	assert.False(t, *got.HasEN2)
}

func TestAudioHandlerIgnoresWhenNoQualifyingStream(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	prober := fakeAudioProber{streams: []AudioStream{{Language: "fra", Channels: 6}}}
	h := NewAudioHandler(st, prober, AudioHandlerConfig{Timeout: time.Second, BreakerOpen: time.Second}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessedIgnored, got.ProcessedStatus)
}

func TestIsEnglishDetectsByLanguageOrTitle(t *testing.T) {
	assert.True(t, isEnglish("eng", ""))
	assert.True(t, isEnglish("", "English Commentary"))
	assert.False(t, isEnglish("fra", "Commentaire"))
}
