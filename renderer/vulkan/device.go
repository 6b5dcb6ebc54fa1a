package vulkan

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/renderer"
)

// fencePollInterval bounds each vkWaitForFences call so that context cancellation is observed
const fencePollInterval = 10 * time.Millisecond

const noTimeout = time.Duration(math.MaxInt64)

type buffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
}

// Options are the Vulkan objects a Device issues its work through. The caller retains ownership of
// all of them.
type Options struct {
	PhysicalDevice core1_0.PhysicalDevice
	Device         core1_0.Device
	// Queue must support transfer operations
	Queue core1_0.Queue
	// CommandPool must belong to Queue's family. One-time command buffers for copies are allocated from it.
	CommandPool         core1_0.CommandPool
	AllocationCallbacks *driver.AllocationCallbacks
}

// Device is a renderer.Device that backs buffers with host-visible, host-coherent Vulkan memory,
// giving each buffer its own allocation
type Device struct {
	logger *slog.Logger

	device              core1_0.Device
	queue               core1_0.Queue
	commandPool         core1_0.CommandPool
	allocationCallbacks *driver.AllocationCallbacks

	memoryProperties     *core1_0.PhysicalDeviceMemoryProperties
	dedicatedAllocations bool

	// Guards command pool and queue access
	submitMutex sync.Mutex
}

var _ renderer.Device = &Device{}

// NewDevice creates a Device from the provided Vulkan objects. Dedicated allocations are used when
// VK_KHR_dedicated_allocation is active on the device.
func NewDevice(logger *slog.Logger, options Options) (*Device, error) {
	if options.PhysicalDevice == nil || options.Device == nil || options.Queue == nil || options.CommandPool == nil {
		return nil, errors.New("vulkan.Options requires PhysicalDevice, Device, Queue, and CommandPool")
	}

	return &Device{
		logger:               logger,
		device:               options.Device,
		queue:                options.Queue,
		commandPool:          options.CommandPool,
		allocationCallbacks:  options.AllocationCallbacks,
		memoryProperties:     options.PhysicalDevice.MemoryProperties(),
		dedicatedAllocations: options.Device.IsDeviceExtensionActive(khr_dedicated_allocation.ExtensionName),
	}, nil
}

func bufferUsageFlags(usage renderer.BufferUsage) core1_0.BufferUsageFlags {
	var flags core1_0.BufferUsageFlags
	if usage&renderer.BufferUsageVertex != 0 {
		flags |= core1_0.BufferUsageVertexBuffer
	}
	if usage&renderer.BufferUsageIndex != 0 {
		flags |= core1_0.BufferUsageIndexBuffer
	}
	if usage&renderer.BufferUsageUniform != 0 {
		flags |= core1_0.BufferUsageUniformBuffer
	}
	if usage&renderer.BufferUsageTransferSrc != 0 {
		flags |= core1_0.BufferUsageTransferSrc
	}
	if usage&renderer.BufferUsageTransferDst != 0 {
		flags |= core1_0.BufferUsageTransferDst
	}
	return flags
}

func isOutOfMemory(res common.VkResult) bool {
	return res == core1_0.VKErrorOutOfDeviceMemory || res == core1_0.VKErrorOutOfHostMemory
}

// findMemoryTypeIndex picks a host-visible, host-coherent memory type out of memoryTypeBits,
// preferring device-local types
func (d *Device) findMemoryTypeIndex(memoryTypeBits uint32) (int, error) {
	required := core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

	best := -1
	for memTypeIndex, memType := range d.memoryProperties.MemoryTypes {
		if memoryTypeBits&(1<<memTypeIndex) == 0 {
			continue
		}
		if memType.PropertyFlags&required != required {
			continue
		}
		if memType.PropertyFlags&core1_0.MemoryPropertyDeviceLocal != 0 {
			return memTypeIndex, nil
		}
		if best < 0 {
			best = memTypeIndex
		}
	}

	if best < 0 {
		return -1, errors.Wrapf(memutils.OutOfDeviceMemoryError, "no host-visible memory type in bits %b", memoryTypeBits)
	}
	return best, nil
}

func (d *Device) CreateBuffer(size uint64, usage renderer.BufferUsage) (*renderer.OwnedBuffer, error) {
	d.logger.Debug("Device::CreateBuffer", slog.Uint64("size", size), slog.String("usage", usage.String()))

	vkBuffer, res, err := d.device.CreateBuffer(d.allocationCallbacks, core1_0.BufferCreateInfo{
		Size:        int(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		if isOutOfMemory(res) {
			return nil, errors.WithSecondaryError(
				errors.Wrapf(memutils.OutOfDeviceMemoryError, "creating a %d-byte buffer", size), err)
		}
		return nil, err
	}

	memReqs := vkBuffer.MemoryRequirements()
	memTypeIndex, err := d.findMemoryTypeIndex(memReqs.MemoryTypeBits)
	if err != nil {
		vkBuffer.Destroy(d.allocationCallbacks)
		return nil, err
	}

	allocInfo := core1_0.MemoryAllocateInfo{
		MemoryTypeIndex: memTypeIndex,
		AllocationSize:  memReqs.Size,
	}
	if d.dedicatedAllocations {
		allocInfo.Next = khr_dedicated_allocation.MemoryDedicatedAllocateInfo{
			Buffer: vkBuffer,
		}
	}

	memory, res, err := d.device.AllocateMemory(d.allocationCallbacks, allocInfo)
	if err != nil {
		vkBuffer.Destroy(d.allocationCallbacks)
		if isOutOfMemory(res) {
			return nil, errors.WithSecondaryError(
				errors.Wrapf(memutils.OutOfDeviceMemoryError, "allocating %d bytes from memory type %d", memReqs.Size, memTypeIndex), err)
		}
		return nil, err
	}

	_, err = vkBuffer.BindBufferMemory(memory, 0)
	if err != nil {
		memory.Free(d.allocationCallbacks)
		vkBuffer.Destroy(d.allocationCallbacks)
		return nil, err
	}

	handle := &buffer{buffer: vkBuffer, memory: memory}
	return renderer.NewOwnedBuffer(handle, size, usage, func() {
		d.logger.Debug("Device::ReleaseBuffer", slog.Uint64("size", size))
		vkBuffer.Destroy(d.allocationCallbacks)
		memory.Free(d.allocationCallbacks)
	}), nil
}

func vulkanBuffer(b *renderer.OwnedBuffer) (*buffer, error) {
	vkBuffer, ok := b.Handle().(*buffer)
	if !ok {
		return nil, errors.Newf("buffer handle of type %T does not belong to a Vulkan device", b.Handle())
	}
	return vkBuffer, nil
}

func (d *Device) CopyBuffer(ctx context.Context, src, dst *renderer.OwnedBuffer, regions []renderer.CopyRegion) (renderer.Fence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcBuffer, err := vulkanBuffer(src)
	if err != nil {
		return nil, err
	}
	dstBuffer, err := vulkanBuffer(dst)
	if err != nil {
		return nil, err
	}

	copies := make([]core1_0.BufferCopy, 0, len(regions))
	for _, region := range regions {
		if err := src.CheckRange(region.SrcOffset, region.Size); err != nil {
			return nil, errors.Wrap(err, "copy source")
		}
		if err := dst.CheckRange(region.DstOffset, region.Size); err != nil {
			return nil, errors.Wrap(err, "copy destination")
		}
		copies = append(copies, core1_0.BufferCopy{
			SrcOffset: int(region.SrcOffset),
			DstOffset: int(region.DstOffset),
			Size:      int(region.Size),
		})
	}

	d.submitMutex.Lock()
	defer d.submitMutex.Unlock()

	commandBuffers, _, err := d.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}
	commandBuffer := commandBuffers[0]

	fence, err := d.recordAndSubmit(commandBuffer, srcBuffer.buffer, dstBuffer.buffer, copies)
	if err != nil {
		d.device.FreeCommandBuffers(commandBuffers)
		return nil, err
	}

	return &copyFence{
		device:        d,
		fence:         fence,
		commandBuffer: commandBuffer,
	}, nil
}

func (d *Device) recordAndSubmit(commandBuffer core1_0.CommandBuffer, src, dst core1_0.Buffer, copies []core1_0.BufferCopy) (core1_0.Fence, error) {
	_, err := commandBuffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return nil, err
	}

	if len(copies) > 0 {
		err = commandBuffer.CmdCopyBuffer(src, dst, copies)
		if err != nil {
			return nil, err
		}
	}

	_, err = commandBuffer.End()
	if err != nil {
		return nil, err
	}

	fence, _, err := d.device.CreateFence(d.allocationCallbacks, core1_0.FenceCreateInfo{})
	if err != nil {
		return nil, err
	}

	_, err = d.queue.Submit(fence, []core1_0.SubmitInfo{
		{CommandBuffers: []core1_0.CommandBuffer{commandBuffer}},
	})
	if err != nil {
		fence.Destroy(d.allocationCallbacks)
		return nil, err
	}

	return fence, nil
}

func vulkanFences(fences []renderer.Fence) ([]core1_0.Fence, error) {
	vkFences := make([]core1_0.Fence, 0, len(fences))
	for _, fence := range fences {
		switch f := fence.(type) {
		case *copyFence:
			vkFences = append(vkFences, f.fence)
		case FrameFence:
			vkFences = append(vkFences, f.Fence)
		default:
			return nil, errors.Newf("fence of type %T does not belong to a Vulkan device", fence)
		}
	}
	return vkFences, nil
}

// WaitForFences blocks until every fence is signaled. ctx is checked between bounded waits, so a
// cancelled wait returns within a few milliseconds.
func (d *Device) WaitForFences(ctx context.Context, fences []renderer.Fence) error {
	vkFences, err := vulkanFences(fences)
	if err != nil {
		return err
	}
	if len(vkFences) == 0 {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := d.device.WaitForFences(true, fencePollInterval, vkFences)
		if err != nil {
			return err
		}
		if res != core1_0.VKTimeout {
			return nil
		}
	}
}

func (d *Device) WaitIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.submitMutex.Lock()
	defer d.submitMutex.Unlock()

	_, err := d.device.WaitIdle()
	return err
}

func (d *Device) mapRange(b *renderer.OwnedBuffer, offset, size uint64) ([]byte, core1_0.DeviceMemory, error) {
	vkBuffer, err := vulkanBuffer(b)
	if err != nil {
		return nil, nil, err
	}

	ptr, _, err := vkBuffer.memory.Map(int(offset), int(size), 0)
	if err != nil {
		return nil, nil, err
	}

	return unsafe.Slice((*byte)(ptr), size), vkBuffer.memory, nil
}

func (d *Device) Write(dst *renderer.OwnedBuffer, offset uint64, data []byte) error {
	if err := dst.CheckRange(offset, uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	mapped, memory, err := d.mapRange(dst, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	defer memory.Unmap()

	copy(mapped, data)
	return nil
}

func (d *Device) Read(src *renderer.OwnedBuffer, offset, size uint64) ([]byte, error) {
	if err := src.CheckRange(offset, size); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}

	mapped, memory, err := d.mapRange(src, offset, size)
	if err != nil {
		return nil, err
	}
	defer memory.Unmap()

	copy(out, mapped)
	return out, nil
}
