package renderer

//go:generate mockgen -source renderer.go -destination ./mocks/renderer.go -package mock_renderer

import (
	"context"
	"fmt"
)

// Kind identifies the graphics API behind a Renderer
type Kind int

const (
	// KindHost is a headless renderer whose buffers live in host memory
	KindHost Kind = iota
	KindVulkan
	KindOpenGL
)

var kindMapping = map[Kind]string{
	KindHost:   "KindHost",
	KindVulkan: "KindVulkan",
	KindOpenGL: "KindOpenGL",
}

func (k Kind) String() string {
	str, ok := kindMapping[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return str
}

// BufferUsage describes how a backing buffer will be bound
type BufferUsage int32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

// BufferUsageMain is the usage of the main vertex and index buffer
const BufferUsageMain = BufferUsageVertex | BufferUsageIndex | BufferUsageTransferSrc | BufferUsageTransferDst

// BufferUsageUniformBuffer is the usage of the uniform buffer
const BufferUsageUniformBuffer = BufferUsageUniform | BufferUsageTransferSrc | BufferUsageTransferDst

var bufferUsageMapping = map[BufferUsage]string{
	BufferUsageVertex:      "BufferUsageVertex",
	BufferUsageIndex:       "BufferUsageIndex",
	BufferUsageUniform:     "BufferUsageUniform",
	BufferUsageTransferSrc: "BufferUsageTransferSrc",
	BufferUsageTransferDst: "BufferUsageTransferDst",
}

func (u BufferUsage) String() string {
	if u == 0 {
		return "None"
	}

	var str string
	for bit := BufferUsageVertex; bit <= BufferUsageTransferDst; bit <<= 1 {
		if u&bit == 0 {
			continue
		}
		if str != "" {
			str += "|"
		}
		str += bufferUsageMapping[bit]
	}
	return str
}

// CopyRegion is a single byte range copied between two buffers
type CopyRegion struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// Fence signals the completion of GPU work. Fences returned from Device.CopyBuffer belong to the
// caller, who must Release them once they have been waited on. Releasing a fence that wraps a
// caller-owned frame fence does nothing.
type Fence interface {
	Release()
}

// Device is the set of buffer operations a backend performs on behalf of the allocator's migrations.
// Allocation failures are returned wrapping memutils.OutOfDeviceMemoryError.
type Device interface {
	// CreateBuffer allocates a new backing buffer of at least size bytes
	CreateBuffer(size uint64, usage BufferUsage) (*OwnedBuffer, error)
	// CopyBuffer issues copies of regions from src to dst and returns a fence that is signaled when
	// the copies have completed on the device
	CopyBuffer(ctx context.Context, src, dst *OwnedBuffer, regions []CopyRegion) (Fence, error)
	// WaitForFences blocks until every fence is signaled
	WaitForFences(ctx context.Context, fences []Fence) error
	// WaitIdle blocks until the device has no work in flight
	WaitIdle(ctx context.Context) error
	// Write stages data into dst at offset
	Write(dst *OwnedBuffer, offset uint64, data []byte) error
	// Read reads size bytes from src at offset back to the host
	Read(src *OwnedBuffer, offset, size uint64) ([]byte, error)
}

// Renderer is the capability a backend exposes to the allocator. It is selected once at
// construction; callers do not branch on the graphics API.
type Renderer interface {
	Kind() Kind
	// UniformBufferAlignment is the hardware-reported minimum offset alignment for uniform buffer bindings
	UniformBufferAlignment() uint64
	Device() Device
}
