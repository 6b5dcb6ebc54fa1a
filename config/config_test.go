package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gpumem"
	"github.com/vkngwrapper/gpumem/config"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/planner"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/renderer"
)

func TestDefaultRoundTrip(t *testing.T) {
	data, err := config.Default().Marshal()
	require.NoError(t, err)

	cfg, err := config.Parse(data)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestEmptyDocumentIsDefault(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
backend = "OpenGL"
frames_in_flight = 3
synchronized = true

[log]
level = "debug"

[policy]
main = "packed"

[capacity]
asset = 1024
uniform_asset = 512
`))
	require.NoError(t, err)

	kind, err := cfg.Kind()
	require.NoError(t, err)
	require.Equal(t, renderer.KindOpenGL, kind)

	options, err := cfg.AllocatorOptions()
	require.NoError(t, err)
	require.Equal(t, gpumem.CreateOptions{
		Flags:         gpumem.CreateInternallySynchronized,
		MainPolicy:    region.PolicyPacked,
		UniformPolicy: region.PolicyAppend,
	}, options)

	defaults := cfg.PlannerDefaults()
	require.Equal(t, uint64(1024), defaults[planner.SectionAsset])
	require.Equal(t, planner.DefaultIndicesCapacity, defaults[planner.SectionIndices])
	require.Equal(t, uint64(512), defaults[planner.SectionUniformAsset])
}

func TestParseErrors(t *testing.T) {
	testCases := map[string]string{
		"unknown backend":   `backend = "metal"`,
		"unknown policy":    "[policy]\nuniform = \"best-fit\"",
		"unknown key":       `capacity_asset = 5`,
		"zero frames":       `frames_in_flight = 0`,
		"bad alignment":     "[host]\nuniform_alignment = 48",
		"unknown log level": "[log]\nlevel = \"chatty\"",
		"malformed":         `backend = `,
	}

	for name, document := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(document))
			require.Error(t, err)
		})
	}

	_, err := config.Parse([]byte("[host]\nuniform_alignment = 48"))
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpumem.toml")
	require.NoError(t, os.WriteFile(path, []byte(`backend = "vulkan"`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.BackendVulkan, cfg.Backend)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Log.ReportTimestamp = false

	var out bytes.Buffer
	logger, err := cfg.NewLogger(&out)
	require.NoError(t, err)

	logger.Info("hidden")
	require.Empty(t, out.String())

	logger.Warn("Allocator::Test", "bytes", 64)
	require.Contains(t, out.String(), "Allocator::Test")
	require.Contains(t, out.String(), "bytes=64")
	require.Contains(t, out.String(), "gpumem")
}

func TestOffsetOptions(t *testing.T) {
	cfg := config.Default()
	cfg.FramesInFlight = 2

	logger, err := cfg.NewLogger(&bytes.Buffer{})
	require.NoError(t, err)

	options := cfg.OffsetOptions(cfg.HostRenderer(logger))
	require.Equal(t, renderer.KindHost, options.Kind)
	require.Equal(t, uint64(2), options.FramesInFlight)
	require.Equal(t, uint64(256), options.UniformAlignment)
}

func TestHostRenderer(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[host]
limit = 1024
uniform_alignment = 64
`))
	require.NoError(t, err)

	logger, err := cfg.NewLogger(&bytes.Buffer{})
	require.NoError(t, err)

	r := cfg.HostRenderer(logger)
	require.Equal(t, renderer.KindHost, r.Kind())
	require.Equal(t, uint64(64), r.UniformBufferAlignment())

	buffer, err := r.Device().CreateBuffer(1024, renderer.BufferUsageMain)
	require.NoError(t, err)

	_, err = r.Device().CreateBuffer(16, renderer.BufferUsageUniformBuffer)
	require.ErrorIs(t, err, memutils.OutOfDeviceMemoryError)

	buffer.Release()
	_, err = r.Device().CreateBuffer(16, renderer.BufferUsageUniformBuffer)
	require.NoError(t, err)
}
