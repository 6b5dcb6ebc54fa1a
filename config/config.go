package config

import (
	"bytes"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/gpumem"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/planner"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/offsets"
	"github.com/vkngwrapper/gpumem/renderer"
	"github.com/vkngwrapper/gpumem/renderer/hostmem"
)

const (
	BackendHost   = "host"
	BackendVulkan = "vulkan"
	BackendOpenGL = "opengl"

	PolicyAppend = "append"
	PolicyPacked = "packed"
)

// Config is the TOML document that configures an allocator and its buffers
type Config struct {
	// Backend is one of "host", "vulkan" or "opengl"
	Backend string `toml:"backend"`
	// FramesInFlight is the number of copies of each uniform chunk
	FramesInFlight uint64 `toml:"frames_in_flight"`
	// Synchronized creates the allocator with gpumem.CreateInternallySynchronized
	Synchronized bool `toml:"synchronized"`

	Log      Log      `toml:"log"`
	Policy   Policy   `toml:"policy"`
	Capacity Capacity `toml:"capacity"`
	Host     Host     `toml:"host"`
}

type Log struct {
	// Level is a charmbracelet/log level name: debug, info, warn, error or fatal
	Level           string `toml:"level"`
	Prefix          string `toml:"prefix"`
	ReportCaller    bool   `toml:"report_caller"`
	ReportTimestamp bool   `toml:"report_timestamp"`
}

// Policy holds the block placement policy of each region, "append" or "packed"
type Policy struct {
	Main    string `toml:"main"`
	Uniform string `toml:"uniform"`
}

// Capacity holds the initial capacity of each buffer section in bytes
type Capacity struct {
	Asset           uint64 `toml:"asset"`
	Indices         uint64 `toml:"indices"`
	Image           uint64 `toml:"image"`
	UI              uint64 `toml:"ui"`
	UniformNonAsset uint64 `toml:"uniform_non_asset"`
	UniformAsset    uint64 `toml:"uniform_asset"`
}

// Host configures the host backend
type Host struct {
	// Limit caps the bytes all host buffers may occupy together. 0 is unlimited.
	Limit uint64 `toml:"limit"`
	// UniformAlignment is the uniform buffer offset alignment the host renderer reports
	UniformAlignment uint64 `toml:"uniform_alignment"`
}

// Default returns the configuration used when no file is supplied
func Default() *Config {
	capacities := planner.DefaultCapacities()

	return &Config{
		Backend:        BackendHost,
		FramesInFlight: 1,
		Log: Log{
			Level:           "info",
			Prefix:          "gpumem",
			ReportTimestamp: true,
		},
		Policy: Policy{
			Main:    PolicyAppend,
			Uniform: PolicyAppend,
		},
		Capacity: Capacity{
			Asset:           capacities[planner.SectionAsset],
			Indices:         capacities[planner.SectionIndices],
			Image:           capacities[planner.SectionImage],
			UI:              capacities[planner.SectionUI],
			UniformNonAsset: capacities[planner.SectionUniformNonAsset],
			UniformAsset:    capacities[planner.SectionUniformAsset],
		},
		Host: Host{
			UniformAlignment: 256,
		},
	}
}

// Parse decodes a TOML document on top of Default and validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and parses a TOML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading configuration %s", path)
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) Validate() error {
	_, err := c.Kind()
	if err != nil {
		return err
	}

	_, err = parsePolicy(c.Policy.Main)
	if err != nil {
		return errors.Wrap(err, "policy.main")
	}
	_, err = parsePolicy(c.Policy.Uniform)
	if err != nil {
		return errors.Wrap(err, "policy.uniform")
	}

	if c.FramesInFlight == 0 {
		return errors.New("frames_in_flight must be at least 1")
	}

	err = memutils.CheckPow2(c.Host.UniformAlignment, "host.uniform_alignment")
	if err != nil {
		return err
	}

	_, err = parseLevel(c.Log.Level)
	return err
}

// Kind maps Backend to a renderer.Kind
func (c *Config) Kind() (renderer.Kind, error) {
	switch strings.ToLower(c.Backend) {
	case BackendHost:
		return renderer.KindHost, nil
	case BackendVulkan:
		return renderer.KindVulkan, nil
	case BackendOpenGL:
		return renderer.KindOpenGL, nil
	}

	return 0, errors.Newf("unknown backend %q", c.Backend)
}

func parsePolicy(policy string) (region.Policy, error) {
	switch strings.ToLower(policy) {
	case PolicyAppend, "":
		return region.PolicyAppend, nil
	case PolicyPacked:
		return region.PolicyPacked, nil
	}

	return 0, errors.Newf("unknown policy %q", policy)
}

// AllocatorOptions converts the configuration into gpumem.CreateOptions
func (c *Config) AllocatorOptions() (gpumem.CreateOptions, error) {
	var options gpumem.CreateOptions
	var err error

	options.MainPolicy, err = parsePolicy(c.Policy.Main)
	if err != nil {
		return options, err
	}
	options.UniformPolicy, err = parsePolicy(c.Policy.Uniform)
	if err != nil {
		return options, err
	}

	if c.Synchronized {
		options.Flags |= gpumem.CreateInternallySynchronized
	}

	return options, nil
}

// PlannerDefaults returns the configured section capacities
func (c *Config) PlannerDefaults() planner.Capacities {
	return planner.Capacities{
		planner.SectionAsset:           c.Capacity.Asset,
		planner.SectionIndices:         c.Capacity.Indices,
		planner.SectionImage:           c.Capacity.Image,
		planner.SectionUI:              c.Capacity.UI,
		planner.SectionUniformNonAsset: c.Capacity.UniformNonAsset,
		planner.SectionUniformAsset:    c.Capacity.UniformAsset,
	}
}

// HostRenderer builds a host renderer whose device enforces Host.Limit and which reports
// Host.UniformAlignment
func (c *Config) HostRenderer(logger *slog.Logger) *hostmem.Renderer {
	return hostmem.NewRenderer(hostmem.NewDevice(logger, c.Host.Limit), c.Host.UniformAlignment)
}

// OffsetOptions returns the offsets.Options for a renderer built from this configuration
func (c *Config) OffsetOptions(r renderer.Renderer) offsets.Options {
	return offsets.Options{
		Kind:             r.Kind(),
		FramesInFlight:   c.FramesInFlight,
		UniformAlignment: r.UniformBufferAlignment(),
	}
}
