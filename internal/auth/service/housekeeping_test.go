package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/revocation"
	"github.com/stretchr/testify/require"
)

func TestHousekeeping_Sweep(t *testing.T) {
	ctx := context.Background()
	reg := revocation.NewMemory()
	now := time.Now()

	require.NoError(t, reg.Revoke(ctx, "old", now.Add(-time.Minute)))
	require.NoError(t, reg.Revoke(ctx, "live", now.Add(time.Hour)))

	hk := NewHousekeepingService(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.now = func() time.Time { return now }

	require.Equal(t, 1, hk.Sweep(ctx))
	require.Equal(t, 1, reg.Len())
	require.Zero(t, hk.Sweep(ctx))
}

func TestHousekeeping_SweepKeepsLeeway(t *testing.T) {
	ctx := context.Background()
	reg := revocation.NewMemory()
	now := time.Now()

	require.NoError(t, reg.Revoke(ctx, "in-leeway", now.Add(-30*time.Second)))
	require.NoError(t, reg.Revoke(ctx, "past-leeway", now.Add(-2*time.Minute)))

	hk := NewHousekeepingService(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Leeway = time.Minute
	hk.now = func() time.Time { return now }

	require.Equal(t, 1, hk.Sweep(ctx))

	revoked, err := reg.IsRevoked(ctx, "in-leeway")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestHousekeeping_StartStop(t *testing.T) {
	ctx := context.Background()
	reg := revocation.NewMemory()
	require.NoError(t, reg.Revoke(ctx, "old", time.Now().Add(-time.Minute)))

	hk := NewHousekeepingService(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond)
	hk.Start()

	// The first sweep runs immediately on start.
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	hk.Stop()
}

func TestHousekeeping_StopIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("never started", func(t *testing.T) {
		hk := NewHousekeepingService(revocation.NewMemory(), logger, time.Hour)
		done := make(chan struct{})
		go func() {
			hk.Stop()
			hk.Stop()
			close(done)
		}()
		require.Eventually(t, func() bool {
			select {
			case <-done:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("started then stopped twice", func(t *testing.T) {
		hk := NewHousekeepingService(revocation.NewMemory(), logger, time.Hour)
		hk.Start()
		hk.Start()
		hk.Stop()
		require.NotPanics(t, hk.Stop)
	})

	t.Run("start after stop is a no-op", func(t *testing.T) {
		hk := NewHousekeepingService(revocation.NewMemory(), logger, time.Hour)
		hk.Stop()
		hk.Start()

		hk.mu.Lock()
		defer hk.mu.Unlock()
		require.False(t, hk.started)
	})
}

func TestHousekeeping_DefaultInterval(t *testing.T) {
	hk := NewHousekeepingService(revocation.NewMemory(), slog.Default(), 0)
	require.Equal(t, time.Hour, hk.Interval)
}
