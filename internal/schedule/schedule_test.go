package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New(logger)

	err := s.Add("sync", "every now and then", func(context.Context) {})
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestSchedulerRunsAndStops(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New(logger)

	var runs atomic.Int32
	var cancelled atomic.Bool
	require.NoError(t, s.Add("sync", "* * * * * *", func(ctx context.Context) {
		runs.Add(1)
		<-ctx.Done()
		cancelled.Store(true)
	}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	assert.True(t, cancelled.Load())
	// The first run was still blocked, so later ticks were skipped.
	assert.Equal(t, int32(1), runs.Load())
}

func TestFields(t *testing.T) {
	got := fields([]interface{}{"entry", 3, "now", "x", "dangling"})
	assert.Equal(t, 3, got["entry"])
	assert.Equal(t, "x", got["now"])
	assert.Len(t, got, 2)
}
