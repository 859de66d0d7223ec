package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/pathmap"
	"github.com/taskkern/taskkernd/internal/runtime"
)

func TestLocalExecuteSuccess(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})
	res, err := l.Execute(context.Background(), runtime.Request{
		Args: []string{"sh", "-c", "echo hello"},
		Cwd:  "/tmp",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestLocalExecuteNonZeroExit(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})
	res, err := l.Execute(context.Background(), runtime.Request{
		Args: []string{"sh", "-c", "exit 3"},
		Cwd:  "/tmp",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestLocalExecuteEnvOverride(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})
	res, err := l.Execute(context.Background(), runtime.Request{
		Args: []string{"sh", "-c", "echo $FOO"},
		Cwd:  "/tmp",
		Env:  map[string]string{"FOO": "bar"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "bar")
}

func TestLocalExecuteTimeout(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})
	res, err := l.Execute(context.Background(), runtime.Request{
		Args:    []string{"sh", "-c", "sleep 5"},
		Cwd:     "/tmp",
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	var timeoutErr *runtime.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, res.ExitCode, 0)
	assert.Equal(t, "SIGTERM", res.SignalName)
}

func TestLocalExecuteKilledBySignal(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})
	res, err := l.Execute(context.Background(), runtime.Request{
		Args: []string{"sh", "-c", "kill -SEGV $$"},
		Cwd:  "/tmp",
	})
	require.NoError(t, err)
	assert.Equal(t, "SIGSEGV", res.SignalName)
	assert.Less(t, res.ExitCode, 0)
}

// TestExclusiveSerializes verifies that two concurrent Exclusive invocations
// cannot overlap.
func TestExclusiveSerializes(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Execute(context.Background(), runtime.Request{
				Args:      []string{"sh", "-c", "sleep 0.2"},
				Cwd:       "/tmp",
				Exclusive: true,
			})
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 350*time.Millisecond, "exclusive calls should serialize, took %s", elapsed)
}

func TestNonExclusiveRunsConcurrently(t *testing.T) {
	l := runtime.NewLocal(pathmap.Identity{})

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Execute(context.Background(), runtime.Request{
				Args: []string{"sh", "-c", "sleep 0.2"},
				Cwd:  "/tmp",
			})
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	assert.Less(t, elapsed, 350*time.Millisecond, "non-exclusive calls should run concurrently, took %s", elapsed)
}
