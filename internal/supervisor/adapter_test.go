// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStartStopper struct {
	started int32
	stopped int32
	startErr error
}

func (f *fakeStartStopper) Start(ctx context.Context) error {
	atomic.AddInt32(&f.started, 1)
	return f.startErr
}

func (f *fakeStartStopper) Stop() error {
	atomic.AddInt32(&f.stopped, 1)
	return nil
}

func TestAdaptStartsAndStopsOnContextCancel(t *testing.T) {
	svc := &fakeStartStopper{}
	a := Adapt("test-service", svc)
	assert.Equal(t, "test-service", a.String())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&svc.stopped) == 1
	}, time.Second, 5*time.Millisecond)

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.started))
}

func TestAdaptReturnsStartErrorWithoutCallingStop(t *testing.T) {
	svc := &fakeStartStopper{startErr: assert.AnError}
	a := Adapt("test-service", svc)

	err := a.Serve(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.stopped))
}
