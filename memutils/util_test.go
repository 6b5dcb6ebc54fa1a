package memutils_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gpumem/memutils"
)

func TestAlignUpRoundTrip(t *testing.T) {
	for _, alignment := range []uint64{4, 16, 64, 256} {
		for requested := uint64(0); requested < 2048; requested++ {
			aligned, err := memutils.AlignUp(requested, alignment)
			require.NoError(t, err)
			require.Zero(t, aligned%alignment)
			require.GreaterOrEqual(t, aligned, requested)
			require.Less(t, aligned-requested, alignment)
		}
	}
}

func TestAlignUpNonPowerOfTwo(t *testing.T) {
	aligned, err := memutils.AlignUp(25, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(36), aligned)

	aligned, err = memutils.AlignUp(36, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(36), aligned)

	require.Equal(t, uint64(24), memutils.AlignDown(35, 12))
}

func TestAlignUpIdentity(t *testing.T) {
	for _, v := range []uint64{0, 1, 7, 1023} {
		aligned, err := memutils.AlignUp(v, 1)
		require.NoError(t, err)
		require.Equal(t, v, aligned)
	}
}

func TestAlignUpZeroAlignment(t *testing.T) {
	_, err := memutils.AlignUp(10, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.AlignmentViolationError))

	require.Panics(t, func() {
		memutils.MustAlignUp(10, 0)
	})
	require.False(t, memutils.IsAligned(0, 0))
}

func TestAlignUpOverflow(t *testing.T) {
	_, err := memutils.AlignUp(math.MaxUint64-2, 16)
	require.True(t, errors.Is(err, memutils.AddressOverflowError))

	_, err = memutils.AlignUp(math.MaxUint64, 12)
	require.True(t, errors.Is(err, memutils.AddressOverflowError))

	aligned, err := memutils.AlignUp(math.MaxUint64-15, 16)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64-15), aligned)

	aligned, err = memutils.AlignUp(math.MaxUint64, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), aligned)

	require.Panics(t, func() {
		memutils.MustAlignUp(math.MaxUint64-2, 16)
	})
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2[uint64](256, "alignment"))
	err := memutils.CheckPow2[uint64](48, "alignment")
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.Error(t, memutils.CheckPow2[uint64](0, "alignment"))
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.AddBlock(16)
	stats.AddBlock(48)
	stats.AddHole(8)

	var other memutils.DetailedStatistics
	other.Clear()
	other.AddBlock(4)
	other.AddHole(100)
	other.AddBuffer(256)

	stats.AddDetailedStatistics(&other)
	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BufferCount: 1,
			BlockCount:  3,
			BufferBytes: 256,
			BlockBytes:  68,
		},
		HoleCount:    2,
		BlockSizeMin: 4,
		BlockSizeMax: 48,
		HoleSizeMin:  8,
		HoleSizeMax:  100,
	}, stats)
}
