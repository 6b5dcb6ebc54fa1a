package hostmem

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/renderer"
)

type buffer struct {
	data []byte
}

// Fence is a host fence. Host copies complete before CopyBuffer returns, so every Fence is
// signaled from creation.
type Fence struct{}

func (f Fence) Release() {}

// Device is a renderer.Device whose buffers are host byte slices. It is used for headless
// operation and to verify buffer contents across migrations.
type Device struct {
	logger *slog.Logger
	limit  uint64

	mutex          sync.Mutex
	allocatedBytes uint64
	liveBuffers    int
	copyCount      int
}

var _ renderer.Device = &Device{}

// NewDevice creates a host Device. When limit is nonzero, CreateBuffer fails with
// memutils.OutOfDeviceMemoryError once live buffers would exceed limit bytes in total.
func NewDevice(logger *slog.Logger, limit uint64) *Device {
	return &Device{
		logger: logger,
		limit:  limit,
	}
}

// SetLimit changes the total number of bytes that live buffers may occupy. 0 removes the limit.
func (d *Device) SetLimit(limit uint64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.limit = limit
}

// AllocatedBytes returns the total size of all live buffers
func (d *Device) AllocatedBytes() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.allocatedBytes
}

// LiveBuffers returns the number of buffers that have been created and not released
func (d *Device) LiveBuffers() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.liveBuffers
}

// CopyCount returns the number of CopyBuffer calls that have completed
func (d *Device) CopyCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.copyCount
}

func (d *Device) CreateBuffer(size uint64, usage renderer.BufferUsage) (*renderer.OwnedBuffer, error) {
	d.logger.Debug("Device::CreateBuffer", slog.Uint64("size", size), slog.String("usage", usage.String()))

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.limit > 0 && d.allocatedBytes+size > d.limit {
		return nil, errors.Wrapf(memutils.OutOfDeviceMemoryError, "host device has %d of %d bytes in use, cannot allocate %d more",
			d.allocatedBytes, d.limit, size)
	}

	d.allocatedBytes += size
	d.liveBuffers++

	return renderer.NewOwnedBuffer(&buffer{data: make([]byte, size)}, size, usage, func() {
		d.mutex.Lock()
		defer d.mutex.Unlock()

		d.allocatedBytes -= size
		d.liveBuffers--
	}), nil
}

func bufferData(b *renderer.OwnedBuffer) ([]byte, error) {
	hostBuffer, ok := b.Handle().(*buffer)
	if !ok {
		return nil, errors.Newf("buffer handle of type %T does not belong to a host device", b.Handle())
	}
	return hostBuffer.data, nil
}

func (d *Device) CopyBuffer(ctx context.Context, src, dst *renderer.OwnedBuffer, regions []renderer.CopyRegion) (renderer.Fence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcData, err := bufferData(src)
	if err != nil {
		return nil, err
	}
	dstData, err := bufferData(dst)
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

		copy(dstData[region.DstOffset:region.DstOffset+region.Size], srcData[region.SrcOffset:region.SrcOffset+region.Size])
	}

	d.mutex.Lock()
	d.copyCount++
	d.mutex.Unlock()

	return Fence{}, nil
}

func (d *Device) WaitForFences(ctx context.Context, fences []renderer.Fence) error {
	return ctx.Err()
}

func (d *Device) WaitIdle(ctx context.Context) error {
	return ctx.Err()
}

func (d *Device) Write(dst *renderer.OwnedBuffer, offset uint64, data []byte) error {
	if err := dst.CheckRange(offset, uint64(len(data))); err != nil {
		return err
	}

	dstData, err := bufferData(dst)
	if err != nil {
		return err
	}

	copy(dstData[offset:], data)
	return nil
}

func (d *Device) Read(src *renderer.OwnedBuffer, offset, size uint64) ([]byte, error) {
	if err := src.CheckRange(offset, size); err != nil {
		return nil, err
	}

	srcData, err := bufferData(src)
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, srcData[offset:offset+size])
	return out, nil
}
