// Package pathmap translates host filesystem paths into the paths a
// subprocess sees, for runtimes that execute inside a container with a
// different mount layout than the host.
package pathmap

import "strings"

// Mapper translates a host path into the path the execution environment
// should use.
type Mapper interface {
	ToExecution(hostPath string) string
}

// Identity returns the input unchanged. Used by the local runtime, where
// host and execution paths are the same filesystem.
type Identity struct{}

// ToExecution implements Mapper.
func (Identity) ToExecution(hostPath string) string { return hostPath }

// VolumePrefix rewrites a hostRoot prefix to execRoot, for containers that
// bind-mount a host directory at a different path inside the container.
// Paths that do not begin with hostRoot are returned unchanged.
type VolumePrefix struct {
	HostRoot string
	ExecRoot string
}

// ToExecution implements Mapper.
func (v VolumePrefix) ToExecution(hostPath string) string {
	hostRoot := strings.TrimSuffix(v.HostRoot, "/")
	execRoot := strings.TrimSuffix(v.ExecRoot, "/")
	if hostRoot == "" {
		return hostPath
	}
	if hostPath == hostRoot {
		return execRoot
	}
	if strings.HasPrefix(hostPath, hostRoot+"/") {
		return execRoot + hostPath[len(hostRoot):]
	}
	return hostPath
}
