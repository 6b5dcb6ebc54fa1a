package migrate_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/migrate"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/renderer"
	"github.com/vkngwrapper/gpumem/renderer/hostmem"
	mock_renderer "github.com/vkngwrapper/gpumem/renderer/mocks"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func pattern(seed byte, size uint64) []byte {
	return bytes.Repeat([]byte{seed}, int(size))
}

// fillTable requests blocks and writes a distinct byte pattern into each one
func fillTable(t *testing.T, table *region.Table, migrator *migrate.Migrator, sizes []uint64) {
	for _, size := range sizes {
		offset, err := table.RequestBlock(size, 16, nil)
		require.NoError(t, err)

		block, found := table.Block(offset)
		require.True(t, found)
		require.NoError(t, migrator.Write(offset, pattern(byte(table.Len()), block.Size)))
	}
}

func TestMigrationPreservesContent(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 128)
	require.NoError(t, err)

	table := region.NewTable()
	fillTable(t, table, migrator, []uint64{16, 40, 8, 32})
	require.Equal(t, uint64(112), table.UsedSize())

	_, err = table.RequestBlock(64, 16, nil)
	require.NoError(t, err)
	before := table.Blocks()
	oldBuffer := migrator.Buffer()

	grew, err := migrator.ReallocCheck(ctx, table.UsedSize(), table.Blocks(), nil)
	require.NoError(t, err)
	require.True(t, grew)
	require.Equal(t, migrate.StateMigrating, migrator.State())
	require.Equal(t, uint64(256), migrator.PendingCapacity())

	// Still authoritative until commit
	require.Same(t, oldBuffer, migrator.Buffer())
	require.ErrorIs(t, migrator.Write(0, []byte{1}), memutils.InvalidStateError)

	require.NoError(t, migrator.Commit(ctx))
	require.Equal(t, migrate.StateStable, migrator.State())
	require.Equal(t, uint64(256), migrator.Capacity())
	require.True(t, oldBuffer.Released())
	require.Equal(t, 1, device.LiveBuffers())
	require.Equal(t, uint64(256), device.AllocatedBytes())

	require.Equal(t, before, table.Blocks())
	require.Equal(t, uint64(176), table.UsedSize())

	for index, block := range before[:4] {
		data, err := migrator.Read(block.Offset, block.Size)
		require.NoError(t, err)
		require.Equal(t, pattern(byte(index+1), block.Size), data)
	}

	// The block at 112 only had its first 16 bytes inside the old buffer
	stats := migrator.Stats()
	require.Equal(t, 1, stats.Migrations)
	require.Equal(t, 5, stats.BlocksCopied)
	require.Equal(t, uint64(16+48+16+32+16), stats.BytesCopied)
}

func TestReallocCheckIdempotent(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 64)
	require.NoError(t, err)

	table := region.NewTable()
	fillTable(t, table, migrator, []uint64{40})
	_, err = table.RequestBlock(40, 8, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(88), table.UsedSize())

	grew, err := migrator.EnsureCapacity(ctx, table.UsedSize(), table.Blocks(), nil)
	require.NoError(t, err)
	require.True(t, grew)
	require.Equal(t, uint64(128), migrator.Capacity())

	for i := 0; i < 3; i++ {
		grew, err = migrator.ReallocCheck(ctx, table.UsedSize(), table.Blocks(), nil)
		require.NoError(t, err)
		require.False(t, grew)
		require.Equal(t, migrate.StateStable, migrator.State())
	}

	require.Equal(t, 1, migrator.Stats().Migrations)
	require.Equal(t, 1, device.CopyCount())
}

func TestOutOfDeviceMemoryKeepsOldBuffer(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 200)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageUniformBuffer, 128)
	require.NoError(t, err)

	table := region.NewTable()
	fillTable(t, table, migrator, []uint64{64, 64})
	oldBuffer := migrator.Buffer()

	grew, err := migrator.ReallocCheck(ctx, table.UsedSize(), table.Blocks(), nil)
	require.False(t, grew)
	require.True(t, errors.Is(err, memutils.OutOfDeviceMemoryError))

	require.Equal(t, migrate.StateStable, migrator.State())
	require.Same(t, oldBuffer, migrator.Buffer())
	require.False(t, oldBuffer.Released())
	require.Equal(t, uint64(128), migrator.Capacity())
	require.Zero(t, migrator.PendingCapacity())
	require.Equal(t, 1, migrator.Stats().Aborts)

	data, err := migrator.Read(64, 64)
	require.NoError(t, err)
	require.Equal(t, pattern(2, 64), data)

	// Retry after other resources have been freed
	device.SetLimit(0)
	grew, err = migrator.EnsureCapacity(ctx, table.UsedSize(), table.Blocks(), nil)
	require.NoError(t, err)
	require.True(t, grew)

	data, err = migrator.Read(64, 64)
	require.NoError(t, err)
	require.Equal(t, pattern(2, 64), data)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 64)
	require.NoError(t, err)

	require.ErrorIs(t, migrator.Commit(ctx), memutils.InvalidStateError)
	require.NoError(t, migrator.Abort(ctx))
	require.Zero(t, migrator.Stats().Aborts)

	grew, err := migrator.ReallocCheck(ctx, 100, nil, nil)
	require.NoError(t, err)
	require.True(t, grew)
	require.Equal(t, 2, device.LiveBuffers())

	_, err = migrator.ReallocCheck(ctx, 100, nil, nil)
	require.ErrorIs(t, err, memutils.InvalidStateError)

	require.NoError(t, migrator.Abort(ctx))
	require.Equal(t, migrate.StateStable, migrator.State())
	require.Equal(t, uint64(64), migrator.Capacity())
	require.Equal(t, 1, device.LiveBuffers())
	require.Equal(t, 1, migrator.Stats().Aborts)

	require.NoError(t, migrator.Destroy(ctx))
	require.Zero(t, device.LiveBuffers())
	require.Nil(t, migrator.Buffer())
}

func TestWriteWithoutMigration(t *testing.T) {
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 64)
	require.NoError(t, err)

	require.NoError(t, migrator.Write(32, pattern(7, 32)))
	require.ErrorIs(t, migrator.Write(48, pattern(7, 32)), memutils.CapacityExceededError)

	_, err = migrator.Read(60, 8)
	require.ErrorIs(t, err, memutils.CapacityExceededError)
}

func TestLazyInitialBuffer(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageUniformBuffer, 0)
	require.NoError(t, err)
	require.Nil(t, migrator.Buffer())
	require.Zero(t, device.LiveBuffers())

	grew, err := migrator.ReallocCheck(ctx, 0, nil, nil)
	require.NoError(t, err)
	require.False(t, grew)

	table := region.NewTable()
	_, err = table.RequestBlock(100, 64, nil)
	require.NoError(t, err)

	grew, err = migrator.EnsureCapacity(ctx, table.UsedSize(), table.Blocks(), nil)
	require.NoError(t, err)
	require.True(t, grew)
	require.Equal(t, uint64(256), migrator.Capacity())
	require.NotNil(t, migrator.Buffer())
	require.Zero(t, device.CopyCount())
}

func TestCancelBeforeAllocating(t *testing.T) {
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 64)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grew, err := migrator.ReallocCheck(ctx, 64, nil, nil)
	require.False(t, grew)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, migrate.StateStable, migrator.State())
	require.Equal(t, 1, device.LiveBuffers())
}

func TestMigrationWaitsForFrameFences(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	device := mock_renderer.NewMockDevice(ctrl)

	var oldReleased, newReleased int
	oldBuffer := renderer.NewOwnedBuffer("old", 128, renderer.BufferUsageMain, func() { oldReleased++ })
	newBuffer := renderer.NewOwnedBuffer("new", 256, renderer.BufferUsageMain, func() { newReleased++ })

	frameFences := []renderer.Fence{
		mock_renderer.NewMockFence(ctrl),
		mock_renderer.NewMockFence(ctrl),
	}
	copyFence := mock_renderer.NewMockFence(ctrl)

	device.EXPECT().CreateBuffer(uint64(128), renderer.BufferUsageMain).Return(oldBuffer, nil)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 128)
	require.NoError(t, err)

	gomock.InOrder(
		device.EXPECT().WaitForFences(gomock.Any(), frameFences).Return(nil),
		device.EXPECT().CreateBuffer(uint64(256), renderer.BufferUsageMain).Return(newBuffer, nil),
		device.EXPECT().CopyBuffer(gomock.Any(), oldBuffer, newBuffer, []renderer.CopyRegion{
			{SrcOffset: 0, DstOffset: 0, Size: 64},
			{SrcOffset: 64, DstOffset: 64, Size: 64},
		}).Return(copyFence, nil),
		device.EXPECT().WaitForFences(gomock.Any(), []renderer.Fence{copyFence}).Return(nil),
		copyFence.EXPECT().Release(),
	)

	live := []region.Block{
		{Offset: 0, Size: 64, Alignment: 16},
		{Offset: 64, Size: 64, Alignment: 16},
	}
	grew, err := migrator.ReallocCheck(ctx, 128, live, frameFences)
	require.NoError(t, err)
	require.True(t, grew)
	require.Zero(t, oldReleased)

	require.NoError(t, migrator.Commit(ctx))
	require.Equal(t, 1, oldReleased)
	require.Zero(t, newReleased)
	require.Same(t, newBuffer, migrator.Buffer())
}

func TestFailedCopyReleasesPendingBuffer(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	device := mock_renderer.NewMockDevice(ctrl)

	var newReleased int
	oldBuffer := renderer.NewOwnedBuffer("old", 64, renderer.BufferUsageMain, nil)
	newBuffer := renderer.NewOwnedBuffer("new", 128, renderer.BufferUsageMain, func() { newReleased++ })

	device.EXPECT().CreateBuffer(uint64(64), renderer.BufferUsageMain).Return(oldBuffer, nil)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 64)
	require.NoError(t, err)

	device.EXPECT().WaitIdle(gomock.Any()).Return(nil)
	device.EXPECT().CreateBuffer(uint64(128), renderer.BufferUsageMain).Return(newBuffer, nil)
	device.EXPECT().CopyBuffer(gomock.Any(), oldBuffer, newBuffer, gomock.Any()).Return(nil, errors.New("device lost"))

	grew, err := migrator.ReallocCheck(ctx, 64, []region.Block{{Offset: 0, Size: 64, Alignment: 4}}, nil)
	require.False(t, grew)
	require.Error(t, err)
	require.Equal(t, 1, newReleased)
	require.Same(t, oldBuffer, migrator.Buffer())
	require.Equal(t, migrate.StateStable, migrator.State())
}

func TestGrowToExactCapacity(t *testing.T) {
	ctx := context.Background()
	device := hostmem.NewDevice(testLogger(), 0)
	migrator, err := migrate.New(testLogger(), device, renderer.BufferUsageMain, 128)
	require.NoError(t, err)

	table := region.NewTable()
	fillTable(t, table, migrator, []uint64{16, 40})

	grew, err := migrator.GrowTo(ctx, 128, table.Blocks(), nil)
	require.NoError(t, err)
	require.False(t, grew)

	grew, err = migrator.GrowTo(ctx, 200, table.Blocks(), nil)
	require.NoError(t, err)
	require.True(t, grew)
	require.Equal(t, uint64(200), migrator.PendingCapacity())

	_, err = migrator.GrowTo(ctx, 400, table.Blocks(), nil)
	require.ErrorIs(t, err, memutils.InvalidStateError)

	require.NoError(t, migrator.Commit(ctx))
	require.Equal(t, uint64(200), migrator.Capacity())

	data, err := migrator.Read(16, 48)
	require.NoError(t, err)
	require.Equal(t, pattern(2, 48), data)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "StateMigrating", migrate.StateMigrating.String())
	require.Equal(t, "State(12)", migrate.State(12).String())
}
