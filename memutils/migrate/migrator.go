package migrate

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/planner"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/renderer"
)

// Migrator owns the authoritative backing buffer of one region on one device, and grows it without
// disturbing work the GPU still has in flight against the old buffer.
//
// A growth is two calls. ReallocCheck decides whether the buffer is large enough; if not it waits
// for the caller's in-flight fences, allocates the new buffer and issues copies of every live block.
// Commit then waits for those copies, swaps the new buffer in and releases the old one. Once
// ReallocCheck has begun allocating, the growth runs to completion or fails: context cancellation
// is only honored while waiting on the caller's fences.
//
// Migrator is not safe for concurrent use. Exactly one Migrator should exist per region per device.
type Migrator struct {
	logger *slog.Logger
	device renderer.Device
	usage  renderer.BufferUsage

	state    State
	buffer   *renderer.OwnedBuffer
	capacity uint64

	pending         *renderer.OwnedBuffer
	pendingCapacity uint64
	copyFence       renderer.Fence
	pendingStats    Stats

	stats Stats
}

// New creates a Migrator and allocates its initial buffer. An initialCapacity of 0 defers allocation
// to the first ReallocCheck that requires any bytes at all.
func New(logger *slog.Logger, device renderer.Device, usage renderer.BufferUsage, initialCapacity uint64) (*Migrator, error) {
	m := &Migrator{
		logger: logger,
		device: device,
		usage:  usage,
		state:  StateStable,
	}

	if initialCapacity > 0 {
		buffer, err := device.CreateBuffer(initialCapacity, usage)
		if err != nil {
			return nil, errors.Wrapf(err, "initial buffer of %d bytes", initialCapacity)
		}

		m.buffer = buffer
		m.capacity = initialCapacity
	}

	return m, nil
}

// State returns the current position in the growth cycle
func (m *Migrator) State() State {
	return m.state
}

// Buffer returns the live buffer, or nil if nothing has been allocated yet. The handle changes after
// each successful Commit.
func (m *Migrator) Buffer() *renderer.OwnedBuffer {
	return m.buffer
}

// Capacity returns the size of the live buffer
func (m *Migrator) Capacity() uint64 {
	return m.capacity
}

// PendingCapacity returns the size of the buffer being migrated to, or 0 if no growth is underway
func (m *Migrator) PendingCapacity() uint64 {
	return m.pendingCapacity
}

// Stats returns the migrator's lifetime counters
func (m *Migrator) Stats() Stats {
	return m.stats
}

// AddStatistics counts the live buffer, if one has been allocated, into stats
func (m *Migrator) AddStatistics(stats *memutils.Statistics) {
	if m.buffer != nil {
		stats.AddBuffer(m.capacity)
	}
}

func (m *Migrator) setState(state State) {
	m.logger.Debug("Migrator::setState",
		slog.String("from", m.state.String()),
		slog.String("to", state.String()),
	)
	m.state = state
}

// ReallocCheck compares required against the live buffer's capacity. If the buffer has room it returns
// false and does nothing else. Otherwise it waits for fences, or for the device to go idle when fences
// is empty, allocates a buffer of the next planned capacity, issues copies of the parts of live that
// lie within the old buffer, and returns true. The caller must then call Commit before writing to
// the region again.
//
// If the device cannot allocate the new buffer, the error wraps memutils.OutOfDeviceMemoryError, the
// migrator returns to StateStable and the old buffer remains authoritative.
func (m *Migrator) ReallocCheck(ctx context.Context, required uint64, live []region.Block, fences []renderer.Fence) (bool, error) {
	if m.state != StateStable {
		return false, errors.Wrapf(memutils.InvalidStateError, "ReallocCheck called from %s", m.state)
	}

	if required == 0 || !planner.NeedsGrowth(required, m.capacity) {
		return false, nil
	}

	newCapacity := planner.NextCapacity(m.capacity, required)
	m.logger.Debug("Migrator::ReallocCheck",
		slog.Uint64("required", required),
		slog.Uint64("capacity", m.capacity),
		slog.Uint64("newCapacity", newCapacity),
	)

	return m.grow(ctx, newCapacity, live, fences)
}

// GrowTo starts a growth to exactly capacity, for callers such as offsets.Finder that plan section
// capacities themselves. It returns false without doing anything when the live buffer is already at
// least that large. Otherwise it behaves as ReallocCheck.
func (m *Migrator) GrowTo(ctx context.Context, capacity uint64, live []region.Block, fences []renderer.Fence) (bool, error) {
	if m.state != StateStable {
		return false, errors.Wrapf(memutils.InvalidStateError, "GrowTo called from %s", m.state)
	}

	if capacity <= m.capacity {
		return false, nil
	}

	m.logger.Debug("Migrator::GrowTo",
		slog.Uint64("capacity", m.capacity),
		slog.Uint64("newCapacity", capacity),
	)

	return m.grow(ctx, capacity, live, fences)
}

func (m *Migrator) grow(ctx context.Context, newCapacity uint64, live []region.Block, fences []renderer.Fence) (bool, error) {
	m.pendingCapacity = newCapacity
	m.setState(StatePendingGrowth)

	var err error
	if len(fences) > 0 {
		err = m.device.WaitForFences(ctx, fences)
	} else {
		err = m.device.WaitIdle(ctx)
	}
	if err != nil {
		m.abandon()
		return false, errors.Wrap(err, "waiting for in-flight work before growth")
	}

	// From here the growth runs to completion or fails
	ctx = context.WithoutCancel(ctx)

	pending, err := m.device.CreateBuffer(m.pendingCapacity, m.usage)
	if err != nil {
		m.logger.Warn("Migrator::grow failed to allocate",
			slog.Uint64("newCapacity", m.pendingCapacity),
			slog.Any("error", err),
		)
		m.abandon()
		return false, errors.Wrapf(err, "growing buffer to %d bytes", m.pendingCapacity)
	}

	regions := m.copyRegions(live)
	if len(regions) > 0 {
		fence, err := m.device.CopyBuffer(ctx, m.buffer, pending, regions)
		if err != nil {
			pending.Release()
			m.abandon()
			return false, errors.Wrap(err, "issuing migration copies")
		}
		m.copyFence = fence
	}

	m.pending = pending
	m.setState(StateMigrating)
	return true, nil
}

// copyRegions builds one copy per live block, clipped to the old buffer. Bytes of a block past the
// old capacity have never been written, so there is nothing to carry over.
func (m *Migrator) copyRegions(live []region.Block) []renderer.CopyRegion {
	m.pendingStats = Stats{}
	if m.buffer == nil {
		return nil
	}

	regions := make([]renderer.CopyRegion, 0, len(live))
	for _, block := range live {
		if block.Offset >= m.capacity {
			continue
		}

		end := block.End()
		if end > m.capacity {
			end = m.capacity
		}

		regions = append(regions, renderer.CopyRegion{
			SrcOffset: block.Offset,
			DstOffset: block.Offset,
			Size:      end - block.Offset,
		})
		m.pendingStats.BytesCopied += end - block.Offset
		m.pendingStats.BlocksCopied++
	}

	return regions
}

// Commit waits for the migration copies to land, makes the new buffer live, and releases the old
// buffer. It is only valid after ReallocCheck has returned true. A failed copy abandons the growth
// and leaves the old buffer authoritative.
func (m *Migrator) Commit(ctx context.Context) error {
	if m.state != StateMigrating {
		return errors.Wrapf(memutils.InvalidStateError, "Commit called from %s", m.state)
	}

	ctx = context.WithoutCancel(ctx)

	if m.copyFence != nil {
		err := m.device.WaitForFences(ctx, []renderer.Fence{m.copyFence})
		m.copyFence.Release()
		m.copyFence = nil

		if err != nil {
			m.pending.Release()
			m.pending = nil
			m.abandon()
			return errors.Wrap(err, "waiting for migration copies")
		}
	}

	m.setState(StateSwapped)
	old := m.buffer
	m.buffer = m.pending
	m.capacity = m.pendingCapacity
	m.pending = nil
	m.pendingCapacity = 0

	if old != nil {
		old.Release()
	}

	m.pendingStats.Migrations = 1
	m.stats.Add(m.pendingStats)
	m.pendingStats = Stats{}

	m.setState(StateStable)
	return nil
}

// Abort abandons a growth that ReallocCheck started. Copies already issued are waited on before the
// new buffer is released. Aborting with no growth underway does nothing.
func (m *Migrator) Abort(ctx context.Context) error {
	if m.state == StateStable {
		return nil
	}

	var err error
	if m.copyFence != nil {
		err = m.device.WaitForFences(context.WithoutCancel(ctx), []renderer.Fence{m.copyFence})
		m.copyFence.Release()
		m.copyFence = nil
	}

	if m.pending != nil {
		m.pending.Release()
		m.pending = nil
	}

	m.abandon()
	return err
}

func (m *Migrator) abandon() {
	m.pendingCapacity = 0
	m.pendingStats = Stats{}
	m.stats.Aborts++
	m.setState(StateStable)
}

// EnsureCapacity runs ReallocCheck and, if it started a growth, Commit
func (m *Migrator) EnsureCapacity(ctx context.Context, required uint64, live []region.Block, fences []renderer.Fence) (bool, error) {
	grew, err := m.ReallocCheck(ctx, required, live, fences)
	if err != nil || !grew {
		return false, err
	}

	err = m.Commit(ctx)
	if err != nil {
		return false, err
	}

	return true, nil
}

// Write stages data into the live buffer at offset. Writing past the live capacity returns
// memutils.CapacityExceededError: the caller skipped ReallocCheck.
func (m *Migrator) Write(offset uint64, data []byte) error {
	if m.state != StateStable {
		return errors.Wrapf(memutils.InvalidStateError, "Write called from %s", m.state)
	}

	end := offset + uint64(len(data))
	if end < offset || end > m.capacity {
		return errors.Wrapf(memutils.CapacityExceededError, "write of %d bytes at offset %d into a buffer of %d bytes",
			len(data), offset, m.capacity)
	}

	return m.device.Write(m.buffer, offset, data)
}

// Read reads size bytes back from the live buffer at offset
func (m *Migrator) Read(offset, size uint64) ([]byte, error) {
	end := offset + size
	if end < offset || end > m.capacity {
		return nil, errors.Wrapf(memutils.CapacityExceededError, "read of %d bytes at offset %d from a buffer of %d bytes",
			size, offset, m.capacity)
	}

	return m.device.Read(m.buffer, offset, size)
}

// Destroy aborts any growth in progress and releases the live buffer
func (m *Migrator) Destroy(ctx context.Context) error {
	err := m.Abort(ctx)

	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
	m.capacity = 0

	return err
}
