package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/vkngwrapper/gpumem/renderer"
)

// FrameFence wraps a sync object the caller owns. Releasing it does nothing.
type FrameFence struct {
	Sync uintptr
}

var _ renderer.Fence = FrameFence{}

func (f FrameFence) Release() {}

// syncFence owns the sync object inserted after a copy
type syncFence struct {
	sync uintptr
}

func (f *syncFence) Release() {
	if f.sync == 0 {
		return
	}
	gl.DeleteSync(f.sync)
	f.sync = 0
}
