package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_Succeeds(t *testing.T) {
	host := NewHost(func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	res := host.Run(context.Background())

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "ok", res.Value)
	assert.NoError(t, res.Err)
	assert.False(t, res.Summary.StartTime.IsZero())
	assert.False(t, res.Summary.EndTime.IsZero())
	assert.Equal(t, StatusSucceeded, host.Status())
}

func TestHost_ResultIsMemoized(t *testing.T) {
	calls := 0
	host := NewHost(func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	first := host.Run(context.Background())
	second := host.Run(context.Background())
	third, ok := host.Result()

	require.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestHost_Fails(t *testing.T) {
	boom := errors.New("boom")
	host := NewHost(func(ctx context.Context) (string, error) {
		return "", boom
	})

	res := host.Run(context.Background())

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.NotZero(t, res.Summary.Duration)
}

func TestHost_NilProducer(t *testing.T) {
	host := NewHost[string](nil)

	res := host.Run(context.Background())

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrNilProducer)
}

func TestHost_PanicIsNormalized(t *testing.T) {
	host := NewHost(func(ctx context.Context) (string, error) {
		panic("kaboom")
	})

	res := host.Run(context.Background())

	require.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "producer panicked")
}

func TestHost_CancelBeforeCompletion(t *testing.T) {
	started := make(chan struct{})
	host := NewHost(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	host.Start(context.Background())
	<-started
	host.Cancel()
	host.Cancel() // idempotent

	res, err := host.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, res.Status)
	assert.NoError(t, res.Err)
}

func TestHost_CancelWinsOverConcurrentError(t *testing.T) {
	started := make(chan struct{})
	host := NewHost(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		// The producer raises a domain error after cancellation was
		// requested; the outcome must still be canceled, not failed.
		return 0, errors.New("late failure")
	})

	host.Start(context.Background())
	<-started
	host.Cancel()

	res, err := host.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, res.Status)
}

func TestHost_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	host := NewHost(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	host.Start(ctx)
	<-started
	cancel()

	res, err := host.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, res.Status)
}

func TestHost_CancelBeforeStart(t *testing.T) {
	host := NewHost(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	host.Cancel()
	res := host.Run(context.Background())

	assert.Equal(t, StatusCanceled, res.Status)
}

func TestHost_CleanupRunsExactlyOnce(t *testing.T) {
	host := NewHost(func(ctx context.Context) (int, error) { return 1, nil })

	var mu sync.Mutex
	runs := 0
	host.OnCleanup(func() {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			host.Cleanup()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)
}

func TestHost_CleanupSafeWithoutStart(t *testing.T) {
	host := NewHost(func(ctx context.Context) (int, error) { return 1, nil })
	assert.NotPanics(t, func() {
		host.Cleanup()
		host.Cleanup()
	})
}

func TestHost_CleanupRunsBeforeTerminalEvent(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	host := NewHost(func(ctx context.Context) (int, error) { return 1, nil },
		WithHooks[int](&Hooks[int]{
			OnStart: func(id string) { record("start") },
			OnDone:  func(id string, res Result[int]) { record("done") },
		}),
	)
	host.OnCleanup(func() { record("cleanup") })

	host.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"start", "cleanup", "done"}, order)
}

func TestHost_ErrorHookOnFailure(t *testing.T) {
	var mu sync.Mutex
	var errSeen error
	doneFired := false

	host := NewHost(func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	}, WithHooks[int](&Hooks[int]{
		OnDone:  func(id string, res Result[int]) { mu.Lock(); doneFired = true; mu.Unlock() },
		OnError: func(id string, err error) { mu.Lock(); errSeen = err; mu.Unlock() },
	}))

	host.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, errSeen)
	assert.False(t, doneFired, "failed executions must fire OnError, not OnDone")
}

func TestHost_DoneHookOnCancellation(t *testing.T) {
	var mu sync.Mutex
	var terminal []Status

	started := make(chan struct{})
	host := NewHost(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, WithHooks[int](&Hooks[int]{
		OnDone:  func(id string, res Result[int]) { mu.Lock(); terminal = append(terminal, res.Status); mu.Unlock() },
		OnError: func(id string, err error) { mu.Lock(); terminal = append(terminal, StatusFailed); mu.Unlock() },
	}))

	host.Start(context.Background())
	<-started
	host.Cancel()
	_, err := host.Wait(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusCanceled}, terminal,
		"cancellation is reported via the done hook, exactly once")
}

func TestHost_RecordUsage(t *testing.T) {
	var host *Host[int]
	host = NewHost(func(ctx context.Context) (int, error) {
		host.RecordUsage(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.02})
		host.RecordUsage(Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6, Cost: 0.01})
		return 1, nil
	})

	res := host.Run(context.Background())

	assert.Equal(t, 2, res.Summary.Calls)
	assert.Equal(t, 21, res.Summary.Usage.TotalTokens)
	assert.InDelta(t, 0.03, res.Summary.Usage.Cost, 1e-9)
}

func TestHost_SummaryPresentOnAllOutcomes(t *testing.T) {
	cases := map[string]Producer[int]{
		"succeeded": func(ctx context.Context) (int, error) { return 1, nil },
		"failed":    func(ctx context.Context) (int, error) { return 0, errors.New("x") },
		"canceled":  func(ctx context.Context) (int, error) { return 0, context.Canceled },
	}
	for name, produce := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewHost(produce).Run(context.Background())
			assert.True(t, res.Status.Terminal())
			assert.False(t, res.Summary.StartTime.IsZero())
			assert.False(t, res.Summary.EndTime.IsZero())
		})
	}
}

func TestHost_WaitAbortsOnContext(t *testing.T) {
	release := make(chan struct{})
	host := NewHost(func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	host.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := host.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	res, err := host.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
}
