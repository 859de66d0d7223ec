package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/runtime"
)

func TestNewLocalDefault(t *testing.T) {
	rt, err := runtime.New(runtime.Config{})
	require.NoError(t, err)
	_, ok := rt.(*runtime.Local)
	assert.True(t, ok)
}

func TestNewContainerizedRequiresID(t *testing.T) {
	_, err := runtime.New(runtime.Config{Kind: "containerized"})
	require.Error(t, err)
}

func TestNewContainerized(t *testing.T) {
	rt, err := runtime.New(runtime.Config{Kind: "containerized", ContainerID: "abc123"})
	require.NoError(t, err)
	c, ok := rt.(*runtime.Containerized)
	require.True(t, ok)
	assert.Equal(t, "abc123", c.ContainerID)
	assert.True(t, c.UIDMapping)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := runtime.New(runtime.Config{Kind: "quantum"})
	require.Error(t, err)
}
