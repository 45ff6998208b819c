// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingService struct {
	served int32
}

func (s *countingService) Serve(ctx context.Context) error {
	atomic.AddInt32(&s.served, 1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func TestTreeServesAddedServicesAcrossAllLayers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree := New(logger, DefaultTreeConfig())

	core := &countingService{}
	intake := &countingService{}
	status := &countingService{}
	tree.AddCoreService(core)
	tree.AddIntakeService(intake)
	tree.AddStatusService(status)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&core.served) == 1 &&
			atomic.LoadInt32(&intake.served) == 1 &&
			atomic.LoadInt32(&status.served) == 1
	}, time.Second, 5*time.Millisecond, "every layer must serve its added service")

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor tree did not shut down after context cancellation")
	}
}

func TestDefaultTreeConfigFillsZeroValues(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree := New(logger, TreeConfig{})
	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 30.0, tree.config.FailureDecay)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
}
