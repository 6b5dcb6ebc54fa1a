package vulkan

import (
	"log/slog"

	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpumem/renderer"
)

// FrameFence wraps a fence the caller owns, typically the in-flight fence of a frame, so a migration
// can wait on it. Releasing a FrameFence does nothing.
type FrameFence struct {
	Fence core1_0.Fence
}

var _ renderer.Fence = FrameFence{}

func (f FrameFence) Release() {}

// FrameFences wraps a set of caller-owned fences
func FrameFences(fences ...core1_0.Fence) []renderer.Fence {
	wrapped := make([]renderer.Fence, 0, len(fences))
	for _, fence := range fences {
		wrapped = append(wrapped, FrameFence{Fence: fence})
	}
	return wrapped
}

// copyFence tracks a submitted copy. Releasing it waits for the copy to finish before destroying the
// fence and freeing the command buffer, since neither may be destroyed while the queue still uses them.
type copyFence struct {
	device        *Device
	fence         core1_0.Fence
	commandBuffer core1_0.CommandBuffer
	released      bool
}

func (f *copyFence) Release() {
	if f.released {
		return
	}
	f.released = true

	_, err := f.device.device.WaitForFences(true, noTimeout, []core1_0.Fence{f.fence})
	if err != nil {
		f.device.logger.Error("copyFence::Release wait failed", slog.Any("error", err))
	}

	f.fence.Destroy(f.device.allocationCallbacks)

	f.device.submitMutex.Lock()
	defer f.device.submitMutex.Unlock()
	f.device.device.FreeCommandBuffers([]core1_0.CommandBuffer{f.commandBuffer})
}
