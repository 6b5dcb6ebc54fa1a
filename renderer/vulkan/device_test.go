package vulkan

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/renderer"
)

func testDevice(memoryTypes ...core1_0.MemoryType) *Device {
	return &Device{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		memoryProperties: &core1_0.PhysicalDeviceMemoryProperties{
			MemoryTypes: memoryTypes,
		},
	}
}

func TestBufferUsageFlags(t *testing.T) {
	require.Equal(t, core1_0.BufferUsageVertexBuffer|core1_0.BufferUsageIndexBuffer|
		core1_0.BufferUsageTransferSrc|core1_0.BufferUsageTransferDst,
		bufferUsageFlags(renderer.BufferUsageMain))
	require.Equal(t, core1_0.BufferUsageUniformBuffer|core1_0.BufferUsageTransferSrc|core1_0.BufferUsageTransferDst,
		bufferUsageFlags(renderer.BufferUsageUniformBuffer))
	require.Equal(t, core1_0.BufferUsageFlags(0), bufferUsageFlags(0))
}

func TestFindMemoryTypePrefersDeviceLocal(t *testing.T) {
	device := testDevice(
		core1_0.MemoryType{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
		core1_0.MemoryType{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
		core1_0.MemoryType{PropertyFlags: core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
	)

	index, err := device.findMemoryTypeIndex(0b111)
	require.NoError(t, err)
	require.Equal(t, 2, index)

	index, err = device.findMemoryTypeIndex(0b011)
	require.NoError(t, err)
	require.Equal(t, 1, index)
}

func TestFindMemoryTypeNoHostVisible(t *testing.T) {
	device := testDevice(
		core1_0.MemoryType{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
		core1_0.MemoryType{PropertyFlags: core1_0.MemoryPropertyHostVisible},
	)

	_, err := device.findMemoryTypeIndex(0b11)
	require.ErrorIs(t, err, memutils.OutOfDeviceMemoryError)
}

func TestFrameFences(t *testing.T) {
	fences := FrameFences(nil, nil)
	require.Len(t, fences, 2)

	vkFences, err := vulkanFences(fences)
	require.NoError(t, err)
	require.Len(t, vkFences, 2)

	_, err = vulkanFences([]renderer.Fence{struct{ renderer.Fence }{}})
	require.Error(t, err)
}
