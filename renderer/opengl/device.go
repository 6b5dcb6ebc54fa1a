package opengl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/renderer"
)

// syncPollInterval bounds each glClientWaitSync call so that context cancellation is observed
const syncPollInterval = 10 * time.Millisecond

type buffer struct {
	id uint32
}

// Device is a renderer.Device backed by OpenGL buffer objects. Every method issues GL calls, so
// all of them must be made from the thread that holds the GL context.
type Device struct {
	logger *slog.Logger

	mutex sync.Mutex
}

var _ renderer.Device = &Device{}

func NewDevice(logger *slog.Logger) *Device {
	return &Device{logger: logger}
}

func usageHint(usage renderer.BufferUsage) uint32 {
	if usage&renderer.BufferUsageUniform != 0 {
		return gl.STREAM_DRAW
	}
	return gl.DYNAMIC_DRAW
}

func drainErrors() {
	for gl.GetError() != gl.NO_ERROR {
	}
}

func glError(operation string) error {
	code := gl.GetError()
	switch code {
	case gl.NO_ERROR:
		return nil
	case gl.OUT_OF_MEMORY:
		drainErrors()
		return errors.Wrapf(memutils.OutOfDeviceMemoryError, "%s: GL_OUT_OF_MEMORY", operation)
	}

	drainErrors()
	return errors.Newf("%s: GL error 0x%x", operation, code)
}

func (d *Device) CreateBuffer(size uint64, usage renderer.BufferUsage) (*renderer.OwnedBuffer, error) {
	d.logger.Debug("Device::CreateBuffer", slog.Uint64("size", size), slog.String("usage", usage.String()))

	d.mutex.Lock()
	defer d.mutex.Unlock()

	drainErrors()

	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, int(size), nil, usageHint(usage))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	if err := glError("glBufferData"); err != nil {
		gl.DeleteBuffers(1, &id)
		return nil, err
	}

	return renderer.NewOwnedBuffer(&buffer{id: id}, size, usage, func() {
		d.logger.Debug("Device::ReleaseBuffer", slog.Uint64("id", uint64(id)))

		d.mutex.Lock()
		defer d.mutex.Unlock()
		gl.DeleteBuffers(1, &id)
	}), nil
}

func glBuffer(b *renderer.OwnedBuffer) (*buffer, error) {
	glBuf, ok := b.Handle().(*buffer)
	if !ok {
		return nil, errors.Newf("buffer handle of type %T does not belong to an OpenGL device", b.Handle())
	}
	return glBuf, nil
}

func (d *Device) CopyBuffer(ctx context.Context, src, dst *renderer.OwnedBuffer, regions []renderer.CopyRegion) (renderer.Fence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcBuffer, err := glBuffer(src)
	if err != nil {
		return nil, err
	}
	dstBuffer, err := glBuffer(dst)
	if err != nil {
		return nil, err
	}

	for _, region := range regions {
		if err := src.CheckRange(region.SrcOffset, region.Size); err != nil {
			return nil, errors.Wrap(err, "copy source")
		}
		if err := dst.CheckRange(region.DstOffset, region.Size); err != nil {
			return nil, errors.Wrap(err, "copy destination")
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	drainErrors()

	gl.BindBuffer(gl.COPY_READ_BUFFER, srcBuffer.id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, dstBuffer.id)
	for _, region := range regions {
		gl.CopyBufferSubData(gl.COPY_READ_BUFFER, gl.COPY_WRITE_BUFFER,
			int(region.SrcOffset), int(region.DstOffset), int(region.Size))
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	if err := glError("glCopyBufferSubData"); err != nil {
		return nil, err
	}

	return &syncFence{sync: gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)}, nil
}

func syncObject(fence renderer.Fence) (uintptr, error) {
	switch f := fence.(type) {
	case *syncFence:
		return f.sync, nil
	case FrameFence:
		return f.Sync, nil
	}
	return 0, errors.Newf("fence of type %T does not belong to an OpenGL device", fence)
}

// WaitForFences blocks until every fence is signaled. ctx is checked between bounded waits.
func (d *Device) WaitForFences(ctx context.Context, fences []renderer.Fence) error {
	for _, fence := range fences {
		syncObj, err := syncObject(fence)
		if err != nil {
			return err
		}

		err = waitSync(ctx, syncObj)
		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

func waitSync(ctx context.Context, syncObj uintptr) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status := gl.ClientWaitSync(syncObj, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(syncPollInterval.Nanoseconds()))
		done, err := waitStatus(status, func() error { return glError("glClientWaitSync") })
		if done {
			return err
		}
	}
}

// waitStatus interprets a glClientWaitSync result. A failed wait is always an error, even when the
// GL error queue has nothing to report.
func waitStatus(status uint32, pendingError func() error) (bool, error) {
	switch status {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		return true, nil
	case gl.WAIT_FAILED:
		if err := pendingError(); err != nil {
			return true, err
		}
		return true, errors.New("glClientWaitSync failed without reporting a GL error")
	}

	return false, nil
}

func (d *Device) WaitIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gl.Finish()
	return nil
}

func (d *Device) Write(dst *renderer.OwnedBuffer, offset uint64, data []byte) error {
	if err := dst.CheckRange(offset, uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	dstBuffer, err := glBuffer(dst)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	drainErrors()
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, dstBuffer.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, int(offset), len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	return glError("glBufferSubData")
}

func (d *Device) Read(src *renderer.OwnedBuffer, offset, size uint64) ([]byte, error) {
	if err := src.CheckRange(offset, size); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}

	srcBuffer, err := glBuffer(src)
	if err != nil {
		return nil, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	drainErrors()
	gl.BindBuffer(gl.COPY_READ_BUFFER, srcBuffer.id)
	gl.GetBufferSubData(gl.COPY_READ_BUFFER, int(offset), int(size), gl.Ptr(out))
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)

	if err := glError("glGetBufferSubData"); err != nil {
		return nil, err
	}
	return out, nil
}
