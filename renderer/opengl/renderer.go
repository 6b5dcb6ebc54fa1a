package opengl

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/vkngwrapper/gpumem/renderer"
)

// Renderer exposes the current OpenGL context to the allocator. gl.Init must already have been
// called on the context's thread.
type Renderer struct {
	device           *Device
	uniformAlignment uint64
}

var _ renderer.Renderer = &Renderer{}

// NewRenderer queries GL_UNIFORM_BUFFER_OFFSET_ALIGNMENT from the current context
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	var alignment int32
	gl.GetIntegerv(gl.UNIFORM_BUFFER_OFFSET_ALIGNMENT, &alignment)
	if err := glError("glGetIntegerv(GL_UNIFORM_BUFFER_OFFSET_ALIGNMENT)"); err != nil {
		return nil, err
	}
	if alignment <= 0 {
		return nil, errors.Newf("context reported a uniform buffer offset alignment of %d", alignment)
	}

	logger.Debug("Renderer::NewRenderer",
		slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		slog.Int("uniformBufferOffsetAlignment", int(alignment)),
	)

	return &Renderer{
		device:           NewDevice(logger),
		uniformAlignment: uint64(alignment),
	}, nil
}

func (r *Renderer) Kind() renderer.Kind {
	return renderer.KindOpenGL
}

func (r *Renderer) UniformBufferAlignment() uint64 {
	return r.uniformAlignment
}

func (r *Renderer) Device() renderer.Device {
	return r.device
}
