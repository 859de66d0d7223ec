package runtime

import (
	"context"
	"fmt"

	"github.com/taskkern/taskkernd/internal/pathmap"
)

// Local executes commands directly on the host via process spawn.
type Local struct {
	Mapper pathmap.Mapper
	lock   *execLock
}

// NewLocal constructs a Local runtime. mapper is typically pathmap.Identity{}
// but is accepted generically so tests can exercise prefix rewriting without
// a container.
func NewLocal(mapper pathmap.Mapper) *Local {
	if mapper == nil {
		mapper = pathmap.Identity{}
	}
	return &Local{Mapper: mapper, lock: newExecLock()}
}

// Execute implements Runtime.
func (l *Local) Execute(ctx context.Context, req Request) (Result, error) {
	if len(req.Args) == 0 {
		return Result{}, fmt.Errorf("runtime: empty command")
	}
	if req.Exclusive {
		l.lock.mu.Lock()
		defer l.lock.mu.Unlock()
	}

	cwd := l.Mapper.ToExecution(req.Cwd)
	env := mergeEnv(ambientEnviron(), req.Env)

	return run(ctx, req.Args[0], req.Args[1:], cwd, env, req.Timeout)
}
