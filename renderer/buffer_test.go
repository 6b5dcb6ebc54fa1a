package renderer_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/renderer"
)

func TestOwnedBufferReleaseOnce(t *testing.T) {
	var releases int
	buffer := renderer.NewOwnedBuffer("handle", 128, renderer.BufferUsageMain, func() {
		releases++
	})

	require.Equal(t, "handle", buffer.Handle())
	require.Equal(t, uint64(128), buffer.Size())
	require.False(t, buffer.Released())

	buffer.Release()
	buffer.Release()
	require.True(t, buffer.Released())
	require.Equal(t, 1, releases)
}

func TestOwnedBufferCheckRange(t *testing.T) {
	buffer := renderer.NewOwnedBuffer(nil, 64, renderer.BufferUsageUniformBuffer, nil)

	require.NoError(t, buffer.CheckRange(0, 64))
	require.NoError(t, buffer.CheckRange(60, 4))
	require.True(t, errors.Is(buffer.CheckRange(60, 8), memutils.CapacityExceededError))
	require.True(t, errors.Is(buffer.CheckRange(^uint64(0), 2), memutils.CapacityExceededError))

	buffer.Release()
	require.Error(t, buffer.CheckRange(0, 1))
}

func TestStrings(t *testing.T) {
	require.Equal(t, "KindVulkan", renderer.KindVulkan.String())
	require.Equal(t, "Kind(9)", renderer.Kind(9).String())
	require.Equal(t, "BufferUsageUniform|BufferUsageTransferSrc|BufferUsageTransferDst", renderer.BufferUsageUniformBuffer.String())
	require.Equal(t, "None", renderer.BufferUsage(0).String())
}
