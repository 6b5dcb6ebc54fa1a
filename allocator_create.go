package gpumem

import (
	"log/slog"
	"sync"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/gpumem/internal/utils"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/renderer"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// CreateInternallySynchronized guards the allocator with a mutex so that it can be called from
	// several goroutines. Without it the consumer must guarantee that only one goroutine, normally the
	// render thread, uses the allocator at a time.
	CreateInternallySynchronized CreateFlags = 1 << iota
)

func init() {
	CreateInternallySynchronized.Register("CreateInternallySynchronized")
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// MainPolicy is how RequestMainMemoryLocation places blocks. The zero value, region.PolicyAppend,
	// always appends at the high-water mark.
	MainPolicy region.Policy
	// UniformPolicy is how RequestUniformMemoryLocation places blocks
	UniformPolicy region.Policy
}

// New creates an Allocator with empty Main and Uniform regions. The Allocator is an ordinary value:
// the renderer or application root owns it and passes it to whatever needs to request memory.
func New(logger *slog.Logger, options CreateOptions) *Allocator {
	logger.Debug("Allocator::New", slog.String("flags", options.Flags.String()))

	return &Allocator{
		logger:        logger,
		createFlags:   options.Flags,
		mainPolicy:    options.MainPolicy,
		uniformPolicy: options.UniformPolicy,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Flags&CreateInternallySynchronized != 0,
		},
		main:              region.NewTable(),
		uniform:           region.NewTable(),
		uniformAlignments: swiss.NewMap[renderer.Renderer, uint64](4),
	}
}

var (
	sharedLock sync.Mutex
	shared     *Allocator
)

// Shared returns the process-wide Allocator, creating it on first use. It is internally synchronized
// and logs to slog.Default(). Code that can be handed an Allocator explicitly should prefer that.
func Shared() *Allocator {
	sharedLock.Lock()
	defer sharedLock.Unlock()

	if shared == nil {
		shared = New(slog.Default(), CreateOptions{
			Flags: CreateInternallySynchronized,
		})
	}

	return shared
}

// DestroyShared clears and discards the process-wide Allocator, if one exists. A later call to Shared
// creates a fresh one.
func DestroyShared() {
	sharedLock.Lock()
	defer sharedLock.Unlock()

	if shared != nil {
		shared.Clear()
		shared = nil
	}
}
