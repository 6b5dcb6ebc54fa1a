package hostmem

import "github.com/vkngwrapper/gpumem/renderer"

// Renderer is a renderer.Renderer over a host Device with a fixed uniform alignment
type Renderer struct {
	device    *Device
	alignment uint64
}

var _ renderer.Renderer = &Renderer{}

func NewRenderer(device *Device, uniformAlignment uint64) *Renderer {
	return &Renderer{
		device:    device,
		alignment: uniformAlignment,
	}
}

func (r *Renderer) Kind() renderer.Kind {
	return renderer.KindHost
}

func (r *Renderer) UniformBufferAlignment() uint64 {
	return r.alignment
}

func (r *Renderer) Device() renderer.Device {
	return r.device
}
