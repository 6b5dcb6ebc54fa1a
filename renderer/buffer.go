package renderer

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpumem/memutils"
)

// OwnedBuffer owns one backend buffer handle along with whatever device memory backs it. Release
// frees both and may be called any number of times, so every exit path of a migration can defer it.
type OwnedBuffer struct {
	handle  any
	size    uint64
	usage   BufferUsage
	release func()

	releaseOnce sync.Once
	released    bool
}

// NewOwnedBuffer wraps a backend handle. release is called exactly once, by the first call to Release.
func NewOwnedBuffer(handle any, size uint64, usage BufferUsage, release func()) *OwnedBuffer {
	return &OwnedBuffer{
		handle:  handle,
		size:    size,
		usage:   usage,
		release: release,
	}
}

// Handle returns the backend handle. Backends type-assert it to their own buffer type.
func (b *OwnedBuffer) Handle() any {
	return b.handle
}

func (b *OwnedBuffer) Size() uint64 {
	return b.size
}

func (b *OwnedBuffer) Usage() BufferUsage {
	return b.usage
}

// Released reports whether Release has been called
func (b *OwnedBuffer) Released() bool {
	return b.released
}

// Release frees the buffer. Calls after the first do nothing.
func (b *OwnedBuffer) Release() {
	b.releaseOnce.Do(func() {
		if b.release != nil {
			b.release()
		}
		b.released = true
	})
}

// CheckRange verifies that a buffer is still live and that size bytes at offset lie inside it
func (b *OwnedBuffer) CheckRange(offset, size uint64) error {
	if b == nil {
		return errors.New("attempted to access a nil buffer")
	}
	if b.released {
		return errors.New("attempted to access a buffer that has already been released")
	}
	if offset+size < offset || offset+size > b.size {
		return errors.Wrapf(memutils.CapacityExceededError, "range [%d, %d) lies outside a buffer of %d bytes",
			offset, offset+size, b.size)
	}
	return nil
}
