package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/chainsync/libs/log"
)

type testService struct {
	BaseService

	starts, stops int
	failStart     error
}

func newTestService(name string) *testService {
	ts := &testService{}
	ts.BaseService = *NewBaseService(log.NewNopLogger(), name, ts)
	return ts
}

func (ts *testService) OnStart(context.Context) error {
	ts.starts++
	return ts.failStart
}

func (ts *testService) OnStop() { ts.stops++ }

func TestBaseServiceWait(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService("TestService")
	require.NoError(t, ts.Start(ctx))

	waitFinished := make(chan struct{})
	go func() {
		ts.Wait()
		close(waitFinished)
	}()

	go ts.Stop() //nolint:errcheck // ignore for tests

	select {
	case <-waitFinished:
		// all good
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Wait() to finish within 100 ms.")
	}
}

func TestBaseServiceContextCancel(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())

	ts := newTestService("TestService")
	require.NoError(t, ts.Start(ctx))
	require.True(t, ts.IsRunning())

	cancel()
	ts.Wait()

	require.False(t, ts.IsRunning())
	require.Equal(t, 1, ts.stops)
	require.ErrorIs(t, ts.Stop(), ErrAlreadyStopped)
}

func TestBaseServiceStartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService("TestService")
	require.NoError(t, ts.Start(ctx))
	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, ts.Stop())
	require.Equal(t, 1, ts.starts)
}

func TestBaseServiceStopBeforeStart(t *testing.T) {
	ts := newTestService("TestService")
	require.ErrorIs(t, ts.Stop(), ErrNotStarted)
	require.False(t, ts.IsRunning())
}

func TestGroupStartFailureStopsStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestService("first")
	second := newTestService("second")
	second.failStart = errors.New("boom")

	g := NewGroup(log.NewNopLogger(), "group", first, second)
	require.Error(t, g.Start(ctx))

	require.Equal(t, 1, first.stops)
	require.False(t, first.IsRunning())
	require.False(t, second.IsRunning())
}

func TestGroupStopsMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestService("first")
	second := newTestService("second")

	g := NewGroup(log.NewNopLogger(), "group", first, second)
	require.NoError(t, g.Start(ctx))
	require.True(t, first.IsRunning())
	require.True(t, second.IsRunning())

	require.NoError(t, g.Stop())
	require.False(t, first.IsRunning())
	require.False(t, second.IsRunning())
}
