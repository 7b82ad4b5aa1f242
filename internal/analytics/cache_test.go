package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCachedComputationOutlivesCancelledCaller(t *testing.T) {
	c := newResultCache(time.Minute, 5*time.Second, time.Now)

	started := make(chan struct{})
	release := make(chan struct{})
	seen := make(chan error, 2)
	var once sync.Once
	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		once.Do(func() { close(started) })
		<-release
		seen <- ctx.Err()
		return 42, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cached(first, c, "metrics|", compute)
		firstDone <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstDone, context.Canceled)

	secondDone := make(chan int, 1)
	go func() {
		v, err := cached(context.Background(), c, "metrics|", compute)
		if err != nil {
			secondDone <- -1
			return
		}
		secondDone <- v
	}()
	close(release)

	require.Equal(t, 42, <-secondDone)
	require.NoError(t, <-seen)
	require.Equal(t, 1, calls)
}

func TestCachedComputationIsBounded(t *testing.T) {
	c := newResultCache(0, 20*time.Millisecond, time.Now)

	_, err := cached(context.Background(), c, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
