package offsets

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// NoOffset marks a vertex stream that an asset does not have
const NoOffset uint64 = math.MaxUint64

const (
	// IndexSize is the size of one asset index
	IndexSize uint64 = 4

	Position2DSize uint64 = 8
	Position3DSize uint64 = 12
	TextureSize    uint64 = 8
	NormalSize     uint64 = 12

	// UIVertexSize is the size of one UI vertex: a 2D position, a texture coordinate and a packed color
	UIVertexSize uint64 = 20
	// UIIndexSize is the size of one UI index
	UIIndexSize uint64 = 2
)

// AssetMode describes which vertex streams an asset carries
type AssetMode int

const (
	AssetMode2DUnmapped AssetMode = iota
	AssetMode2DTextured
	AssetMode3DUnmapped
	AssetMode3DTextured
)

var assetModeMapping = map[AssetMode]string{
	AssetMode2DUnmapped: "AssetMode2DUnmapped",
	AssetMode2DTextured: "AssetMode2DTextured",
	AssetMode3DUnmapped: "AssetMode3DUnmapped",
	AssetMode3DTextured: "AssetMode3DTextured",
}

func (m AssetMode) String() string {
	str, ok := assetModeMapping[m]
	if !ok {
		return fmt.Sprintf("AssetMode(%d)", int(m))
	}
	return str
}

// Is2D reports whether the asset is drawn with 2D positions
func (m AssetMode) Is2D() bool {
	return m == AssetMode2DUnmapped || m == AssetMode2DTextured
}

// IndexStreams is the number of index streams a separate-stream layout stores for the mode: one
// for positions, plus one for each of texture coordinates and normals when present
func (m AssetMode) IndexStreams() uint64 {
	switch m {
	case AssetMode2DTextured, AssetMode3DUnmapped:
		return 2
	case AssetMode3DTextured:
		return 3
	}
	return 1
}

// InterleavedVertexSize is the size of one vertex when every stream is interleaved into a single
// vertex, as the OpenGL layout does
func (m AssetMode) InterleavedVertexSize() uint64 {
	switch m {
	case AssetMode2DTextured:
		return Position2DSize + TextureSize
	case AssetMode3DUnmapped:
		return Position3DSize + NormalSize
	case AssetMode3DTextured:
		return Position3DSize + TextureSize + NormalSize
	}
	return Position2DSize
}

func (m AssetMode) positionSize() uint64 {
	if m.Is2D() {
		return Position2DSize
	}
	return Position3DSize
}

func (m AssetMode) hasTexture() bool {
	return m == AssetMode2DTextured || m == AssetMode3DTextured
}

func (m AssetMode) hasNormal() bool {
	return m == AssetMode3DUnmapped || m == AssetMode3DTextured
}

// Asset is the shape of one asset's vertex and index data. The Finder only cares about counts, never
// about the data itself.
type Asset struct {
	ID   uuid.UUID
	Mode AssetMode

	// PositionCount, TextureCount and NormalCount size the separate streams of the Vulkan layout.
	// Streams that the mode does not carry are ignored.
	PositionCount uint64
	TextureCount  uint64
	NormalCount   uint64

	// VertexCount sizes the interleaved vertices of the OpenGL layout
	VertexCount uint64

	// IndexCount is the number of indices per index stream
	IndexCount uint64
}

// AssetOffsets locates one asset's data. Position, Texture and Normal are byte offsets into the
// asset section. Index is an offset into the asset section for the Vulkan layout and into the index
// section for OpenGL. Uniform is an offset into the uniform buffer. Streams the asset does not have,
// or that are interleaved into Position, are NoOffset.
type AssetOffsets struct {
	Position uint64
	Texture  uint64
	Normal   uint64
	Index    uint64
	Uniform  uint64
}

// UICommand is one UI draw command
type UICommand struct {
	VertexCount uint64
	IndexCount  uint64

	// VertexOffset is the offset of the command's vertices from the start of the UI section
	VertexOffset uint64
	// IndexOffset is the offset of the command's indices: within the UI section for the Vulkan layout,
	// within the index section for OpenGL
	IndexOffset uint64
}
