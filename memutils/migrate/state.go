package migrate

import "fmt"

// State is the position of a Migrator in its growth cycle
type State uint32

const (
	// StateStable means the live buffer is authoritative and no growth is pending
	StateStable State = iota
	// StatePendingGrowth means growth has been decided and the new capacity computed, but nothing has
	// been allocated yet
	StatePendingGrowth
	// StateMigrating means the new buffer exists and copies of every live block have been issued to it
	StateMigrating
	// StateSwapped means the new buffer has become the live buffer and the old one is being released
	StateSwapped
)

var stateMapping = map[State]string{
	StateStable:        "StateStable",
	StatePendingGrowth: "StatePendingGrowth",
	StateMigrating:     "StateMigrating",
	StateSwapped:       "StateSwapped",
}

func (s State) String() string {
	str, ok := stateMapping[s]
	if !ok {
		return fmt.Sprintf("State(%d)", uint32(s))
	}
	return str
}

// Stats counts the work a Migrator has done over its lifetime
type Stats struct {
	// Migrations is the number of growths that reached Commit successfully
	Migrations int
	// Aborts is the number of growths that were abandoned, whether from device exhaustion, a failed
	// copy, or a call to Abort
	Aborts int
	// BytesCopied is the number of bytes of live blocks copied into new buffers
	BytesCopied uint64
	// BlocksCopied is the number of live blocks copied into new buffers
	BlocksCopied int
}

func (s *Stats) Add(other Stats) {
	s.Migrations += other.Migrations
	s.Aborts += other.Aborts
	s.BytesCopied += other.BytesCopied
	s.BlocksCopied += other.BlocksCopied
}
