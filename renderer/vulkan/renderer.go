package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpumem/renderer"
)

// Renderer exposes a Vulkan device to the allocator
type Renderer struct {
	device           *Device
	uniformAlignment uint64
}

var _ renderer.Renderer = &Renderer{}

// NewRenderer creates a Vulkan Renderer, reading the uniform buffer offset alignment from the
// physical device's limits
func NewRenderer(logger *slog.Logger, options Options) (*Renderer, error) {
	device, err := NewDevice(logger, options)
	if err != nil {
		return nil, err
	}

	properties, err := options.PhysicalDevice.Properties()
	if err != nil {
		return nil, errors.Wrap(err, "reading physical device properties")
	}

	logger.Debug("Renderer::NewRenderer",
		slog.String("device", properties.DriverName),
		slog.Int("minUniformBufferOffsetAlignment", properties.Limits.MinUniformBufferOffsetAlignment),
	)

	return &Renderer{
		device:           device,
		uniformAlignment: uint64(properties.Limits.MinUniformBufferOffsetAlignment),
	}, nil
}

func (r *Renderer) Kind() renderer.Kind {
	return renderer.KindVulkan
}

func (r *Renderer) UniformBufferAlignment() uint64 {
	return r.uniformAlignment
}

func (r *Renderer) Device() renderer.Device {
	return r.device
}
