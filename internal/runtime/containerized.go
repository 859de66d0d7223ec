package runtime

import (
	"context"
	"fmt"
	"os"

	"github.com/taskkern/taskkernd/internal/pathmap"
)

// Containerized executes commands by prepending a "docker exec" invocation,
// passing per-variable env flags and (optionally) a uid:gid so files written
// by the child inside the bind-mounted worktree are owned by the calling
// user rather than root. Grounded on
// GandalftheGUI-catherdd/internal/daemon/container.go's execInContainer and
// startSingleContainer.
type Containerized struct {
	ContainerID string
	Mapper      pathmap.Mapper
	UIDMapping  bool
	DockerBin   string // defaults to "docker"

	lock *execLock
}

// NewContainerized constructs a Containerized runtime targeting containerID.
func NewContainerized(containerID string, mapper pathmap.Mapper, uidMapping bool) *Containerized {
	if mapper == nil {
		mapper = pathmap.Identity{}
	}
	return &Containerized{
		ContainerID: containerID,
		Mapper:      mapper,
		UIDMapping:  uidMapping,
		DockerBin:   "docker",
		lock:        newExecLock(),
	}
}

// Execute implements Runtime.
func (c *Containerized) Execute(ctx context.Context, req Request) (Result, error) {
	if len(req.Args) == 0 {
		return Result{}, fmt.Errorf("runtime: empty command")
	}
	if c.ContainerID == "" {
		return Result{}, fmt.Errorf("runtime: containerized runtime requires a container id")
	}
	if req.Exclusive {
		c.lock.mu.Lock()
		defer c.lock.mu.Unlock()
	}

	cwd := c.Mapper.ToExecution(req.Cwd)

	dockerArgs := []string{"exec"}
	if c.UIDMapping {
		dockerArgs = append(dockerArgs, "-u", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()))
	}
	for k, v := range req.Env {
		dockerArgs = append(dockerArgs, "-e", k+"="+v)
	}
	dockerArgs = append(dockerArgs, "-w", cwd, c.ContainerID)
	dockerArgs = append(dockerArgs, req.Args...)

	bin := c.DockerBin
	if bin == "" {
		bin = "docker"
	}

	// The ambient environment is still merged so docker itself (and any
	// wrapper) resolves PATH etc; per-variable -e flags are how env reaches
	// the containerized child, not the outer docker process's environment.
	env := mergeEnv(ambientEnviron(), nil)

	return run(ctx, bin, dockerArgs, "", env, req.Timeout)
}
