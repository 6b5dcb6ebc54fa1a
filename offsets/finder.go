package offsets

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/planner"
	"github.com/vkngwrapper/gpumem/renderer"
	"golang.org/x/exp/slices"
)

const (
	DefaultTransformUniformSize   uint64 = 128
	DefaultTransform2DUniformSize uint64 = 64
	DefaultLightUniformSize       uint64 = 272
	DefaultAssetUniformSize       uint64 = 64
	DefaultAssetUniformSize2D     uint64 = 32
)

// Options controls how a Finder lays out buffer sections
type Options struct {
	// Kind selects the layout. KindOpenGL interleaves vertices and keeps indices in their own section;
	// every other kind uses separate vertex streams with indices packed into the asset section.
	Kind renderer.Kind
	// FramesInFlight is the number of copies of each uniform chunk. 0 is treated as 1.
	FramesInFlight uint64
	// UniformAlignment is the renderer's minimum uniform buffer offset alignment
	UniformAlignment uint64
	// GlobalUniformSizes are the sizes of the uniform chunks that do not belong to an asset, such as
	// camera transforms and lights. nil uses the default transform, 2D transform and light sizes.
	GlobalUniformSizes []uint64
	// AssetUniformSize and AssetUniformSize2D are the per-asset uniform chunk sizes for 3D and 2D
	// assets. 0 uses the defaults.
	AssetUniformSize   uint64
	AssetUniformSize2D uint64
}

// Finder assigns every asset and UI draw command its byte offsets, and keeps the per-section usage
// those offsets imply. Every structural change triggers a full, deterministic recompute of every
// offset in insertion order: nothing is updated incrementally, so offsets already baked into GPU
// commands are either all still valid or all replaced together.
//
// Finder is not safe for concurrent use.
type Finder struct {
	logger  *slog.Logger
	planner *planner.Planner
	options Options

	order   []uuid.UUID
	assets  *swiss.Map[uuid.UUID, Asset]
	offsets *swiss.Map[uuid.UUID, AssetOffsets]
	ui      []UICommand

	info planner.SectionInfo
}

// New creates a Finder whose section capacities start at the planner's defaults
func New(logger *slog.Logger, capacityPlanner *planner.Planner, options Options) (*Finder, error) {
	if options.UniformAlignment == 0 {
		return nil, errors.Wrap(memutils.AlignmentViolationError, "offsets.Options.UniformAlignment must not be 0")
	}
	err := memutils.CheckPow2(options.UniformAlignment, "offsets.Options.UniformAlignment")
	if err != nil {
		return nil, err
	}

	if options.FramesInFlight == 0 {
		options.FramesInFlight = 1
	}
	if options.GlobalUniformSizes == nil {
		options.GlobalUniformSizes = []uint64{DefaultTransformUniformSize, DefaultTransform2DUniformSize, DefaultLightUniformSize}
	}
	if options.AssetUniformSize == 0 {
		options.AssetUniformSize = DefaultAssetUniformSize
	}
	if options.AssetUniformSize2D == 0 {
		options.AssetUniformSize2D = DefaultAssetUniformSize2D
	}

	f := &Finder{
		logger:  logger,
		planner: capacityPlanner,
		options: options,
		assets:  swiss.NewMap[uuid.UUID, Asset](42),
		offsets: swiss.NewMap[uuid.UUID, AssetOffsets](42),
	}
	capacityPlanner.Initialize(&f.info)
	f.Recompute()

	return f, nil
}

// AddAsset registers an asset at the end of the ordering and recomputes every offset. An asset with a
// nil ID is assigned a new random one. The asset's ID is returned.
func (f *Finder) AddAsset(asset Asset) (uuid.UUID, error) {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}

	if f.assets.Has(asset.ID) {
		return uuid.Nil, errors.Newf("asset %s is already registered", asset.ID)
	}

	if _, ok := assetModeMapping[asset.Mode]; !ok {
		return uuid.Nil, errors.Newf("asset %s has unknown mode %s", asset.ID, asset.Mode)
	}

	f.logger.Debug("Finder::AddAsset", slog.String("id", asset.ID.String()), slog.String("mode", asset.Mode.String()))

	f.order = append(f.order, asset.ID)
	f.assets.Put(asset.ID, asset)
	f.Recompute()

	return asset.ID, nil
}

// RemoveAsset unregisters an asset and recomputes every offset. Assets after it move down.
func (f *Finder) RemoveAsset(id uuid.UUID) error {
	if !f.assets.Has(id) {
		return errors.Newf("asset %s is not registered", id)
	}

	f.logger.Debug("Finder::RemoveAsset", slog.String("id", id.String()))

	index := slices.Index(f.order, id)
	f.order = slices.Delete(f.order, index, index+1)
	f.assets.Delete(id)
	f.offsets.Delete(id)
	f.Recompute()

	return nil
}

// SetUICommands replaces the UI draw commands and recomputes every offset
func (f *Finder) SetUICommands(commands []UICommand) {
	f.ui = slices.Clone(commands)
	f.Recompute()
}

// UICommands returns the UI draw commands with their offsets filled in
func (f *Finder) UICommands() []UICommand {
	return slices.Clone(f.ui)
}

// Offsets returns the offsets assigned to an asset by the last recompute
func (f *Finder) Offsets(id uuid.UUID) (AssetOffsets, bool) {
	return f.offsets.Get(id)
}

// Assets returns the registered asset IDs in layout order
func (f *Finder) Assets() []uuid.UUID {
	return slices.Clone(f.order)
}

// SectionInfo returns a snapshot of section usage and capacity
func (f *Finder) SectionInfo() planner.SectionInfo {
	return f.info
}

func (f *Finder) separateStreams() bool {
	return f.options.Kind != renderer.KindOpenGL
}

func (f *Finder) uniformChunk(size uint64) uint64 {
	return f.options.FramesInFlight * memutils.MustAlignUp(size, f.options.UniformAlignment)
}

// Recompute reassigns every offset from scratch and rebuilds section usage. Capacities are left alone.
func (f *Finder) Recompute() {
	f.info.ResetUsed()

	var nonAsset uint64
	for _, size := range f.options.GlobalUniformSizes {
		nonAsset += f.uniformChunk(size)
	}
	f.info.SetUsed(planner.SectionUniformNonAsset, nonAsset)

	var assetSize, indicesSize, uniformSize uint64
	for _, id := range f.order {
		asset, _ := f.assets.Get(id)

		var offsets AssetOffsets
		if f.separateStreams() {
			offsets, assetSize = f.separateAssetOffsets(asset, assetSize)
		} else {
			offsets, assetSize, indicesSize = f.interleavedAssetOffsets(asset, assetSize, indicesSize)
		}

		offsets.Uniform = nonAsset + uniformSize
		memutils.DebugCheckAligned(offsets.Uniform, f.options.UniformAlignment)
		if asset.Mode.Is2D() {
			uniformSize += f.uniformChunk(f.options.AssetUniformSize2D)
		} else {
			uniformSize += f.uniformChunk(f.options.AssetUniformSize)
		}

		f.offsets.Put(id, offsets)
	}

	var uiSize uint64
	for i := range f.ui {
		command := &f.ui[i]
		command.VertexOffset = uiSize
		uiSize += command.VertexCount * UIVertexSize
		uiSize = memutils.MustAlignUp(uiSize, UIIndexSize)

		if f.separateStreams() {
			command.IndexOffset = uiSize
			uiSize += command.IndexCount * UIIndexSize
		} else {
			command.IndexOffset = indicesSize
			indicesSize += command.IndexCount * UIIndexSize
		}
	}

	f.info.SetUsed(planner.SectionAsset, assetSize)
	f.info.SetUsed(planner.SectionIndices, indicesSize)
	f.info.SetUsed(planner.SectionUI, uiSize)
	f.info.SetUsed(planner.SectionUniformAsset, uniformSize)
}

// separateAssetOffsets lays out one asset as consecutive position, texture and normal streams
// followed by its index streams, all within the asset section
func (f *Finder) separateAssetOffsets(asset Asset, assetSize uint64) (AssetOffsets, uint64) {
	offsets := AssetOffsets{
		Position: assetSize,
		Texture:  NoOffset,
		Normal:   NoOffset,
	}
	assetSize += asset.PositionCount * asset.Mode.positionSize()

	if asset.Mode.hasTexture() {
		offsets.Texture = assetSize
		assetSize += asset.TextureCount * TextureSize
	}

	if asset.Mode.hasNormal() {
		offsets.Normal = assetSize
		assetSize += asset.NormalCount * NormalSize
	}

	assetSize = memutils.MustAlignUp(assetSize, IndexSize)
	offsets.Index = assetSize
	assetSize += asset.Mode.IndexStreams() * asset.IndexCount * IndexSize

	return offsets, assetSize
}

// interleavedAssetOffsets lays out one asset as interleaved vertices in the asset section and a single
// index stream in the index section
func (f *Finder) interleavedAssetOffsets(asset Asset, assetSize, indicesSize uint64) (AssetOffsets, uint64, uint64) {
	offsets := AssetOffsets{
		Position: assetSize,
		Texture:  NoOffset,
		Normal:   NoOffset,
		Index:    indicesSize,
	}

	assetSize += asset.VertexCount * asset.Mode.InterleavedVertexSize()
	assetSize = memutils.MustAlignUp(assetSize, IndexSize)
	indicesSize += asset.IndexCount * IndexSize

	return offsets, assetSize, indicesSize
}

// AssetFootprint is the number of bytes an asset occupies in the current layout, counting its index
// streams but not its uniform data
func (f *Finder) AssetFootprint(asset Asset) uint64 {
	if f.separateStreams() {
		_, size := f.separateAssetOffsets(asset, 0)
		return size
	}

	size := memutils.MustAlignUp(asset.VertexCount*asset.Mode.InterleavedVertexSize(), IndexSize)
	return size + asset.IndexCount*IndexSize
}

// MaxAssetSize returns the largest AssetFootprint among the assets at layout positions [from, to)
func (f *Finder) MaxAssetSize(from, to int) (uint64, error) {
	if from < 0 || to > len(f.order) || from > to {
		return 0, errors.Newf("asset range [%d, %d) is out of bounds for %d assets", from, to, len(f.order))
	}

	var maxSize uint64
	for _, id := range f.order[from:to] {
		asset, _ := f.assets.Get(id)
		size := f.AssetFootprint(asset)
		if size > maxSize {
			maxSize = size
		}
	}

	return maxSize, nil
}

// CapacityCheck runs the planner over the current section usage, applies any growth to the section
// capacities, and returns the growths. An empty result means every section still has room.
func (f *Finder) CapacityCheck() []planner.Growth {
	growths := f.planner.Plan(&f.info)
	f.planner.Apply(&f.info, growths)

	for _, growth := range growths {
		f.logger.Info("Finder::CapacityCheck section grew",
			slog.String("section", growth.Section.String()),
			slog.Uint64("capacity", growth.NewCapacity),
		)
	}

	return growths
}

// MainBufferCapacity is the size of the main vertex buffer the current capacities call for: the asset
// section followed by the UI section. The OpenGL layout keeps indices in a separate buffer.
func (f *Finder) MainBufferCapacity() uint64 {
	return f.info.TotalCapacity(planner.SectionAsset, planner.SectionUI)
}

// UISectionStart is the offset of the UI section within the main buffer
func (f *Finder) UISectionStart() uint64 {
	return f.info.Usage(planner.SectionAsset).Capacity
}

// IndexBufferCapacity is the size of the separate index buffer, which only the OpenGL layout uses
func (f *Finder) IndexBufferCapacity() uint64 {
	if f.separateStreams() {
		return 0
	}
	return f.info.Usage(planner.SectionIndices).Capacity
}

// UniformBufferCapacity is the size of the uniform buffer the current capacities call for
func (f *Finder) UniformBufferCapacity() uint64 {
	return f.info.TotalCapacity(planner.SectionUniformNonAsset, planner.SectionUniformAsset)
}
