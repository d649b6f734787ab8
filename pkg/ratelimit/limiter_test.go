package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstWaitIsImmediate(t *testing.T) {
	p := NewPacer(time.Hour)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerSpacesEvents(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerReservesSlotsAcrossGoroutines(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPacer(time.Second)
	p.now = func() time.Time { return base }

	// With a frozen clock each reservation lands one interval later.
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Wait(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, base.Add(4*time.Second), p.next)
}

func TestPacerGapStartsAfterSlowRequest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	p := NewPacer(time.Second)
	p.now = func() time.Time { return clock }

	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, base.Add(time.Second), p.next)

	// The request takes five seconds.
	clock = base.Add(5 * time.Second)
	p.Done()
	assert.Equal(t, base.Add(6*time.Second), p.next)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled, "a full gap is still owed")
}

func TestPacerDoneKeepsLaterReservations(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPacer(time.Second)
	p.now = func() time.Time { return base }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Wait(ctx)
	_ = p.Wait(ctx)
	_ = p.Wait(ctx)
	p.Done()
	assert.Equal(t, base.Add(3*time.Second), p.next)
}

func TestPacerHonorsCancellation(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))
	p.Reset()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestZeroIntervalAndUnlimited(t *testing.T) {
	for _, l := range []Limiter{NewPacer(0), Unlimited{}} {
		require.NoError(t, l.Wait(context.Background()))
		l.Done()
		require.NoError(t, l.Wait(context.Background()))
	}
}
