package region

import "fmt"

// Policy selects how a Table chooses the offset for a new block
type Policy uint32

const (
	// PolicyAppend always places new blocks at the aligned high-water mark. Space freed below the
	// high-water mark is never reused until the table is rebuilt.
	PolicyAppend Policy = iota
	// PolicyPacked searches the holes left by deletions in offset order and uses the first one
	// large enough for the aligned request, falling back to PolicyAppend.
	PolicyPacked
)

var policyMapping = map[Policy]string{
	PolicyAppend: "PolicyAppend",
	PolicyPacked: "PolicyPacked",
}

func (p Policy) String() string {
	str, ok := policyMapping[p]
	if !ok {
		return fmt.Sprintf("Policy(%d)", uint32(p))
	}
	return str
}
