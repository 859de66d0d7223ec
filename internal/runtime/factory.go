package runtime

import (
	"fmt"

	"github.com/taskkern/taskkernd/internal/pathmap"
)

// Config mirrors the recognized runtime configuration options from the
// original spec's §4.3 table and §6 environment variable table.
type Config struct {
	Kind          string // "local" (default) or "containerized"
	ContainerID   string
	HostPath      string
	ContainerPath string
	UIDMapping    *bool // nil means default true
}

// New builds a Runtime from cfg.
func New(cfg Config) (Runtime, error) {
	mapper := buildMapper(cfg)

	switch cfg.Kind {
	case "", "local":
		return NewLocal(mapper), nil
	case "containerized":
		if cfg.ContainerID == "" {
			return nil, fmt.Errorf("runtime: containerized runtime requires a container id")
		}
		uidMapping := true
		if cfg.UIDMapping != nil {
			uidMapping = *cfg.UIDMapping
		}
		return NewContainerized(cfg.ContainerID, mapper, uidMapping), nil
	default:
		return nil, fmt.Errorf("runtime: unknown runtime kind %q", cfg.Kind)
	}
}

func buildMapper(cfg Config) pathmap.Mapper {
	if cfg.HostPath != "" && cfg.ContainerPath != "" {
		return pathmap.VolumePrefix{HostRoot: cfg.HostPath, ExecRoot: cfg.ContainerPath}
	}
	return pathmap.Identity{}
}
