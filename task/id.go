package task

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit, time-sortable task identifier (spec.md §3). ULID is
// used instead of a random UUID specifically so task ids sort
// chronologically — useful for listing/paging RunningTask snapshots
// without a separate timestamp column.
type ID struct {
	ulid.ULID
}

// NewID mints a fresh, collision-resistant ID for the given instant.
// Collision resistance across a fleet of supervisors comes from ULID's
// 80 bits of crypto/rand entropy per millisecond, not from any
// coordination between supervisors.
func NewID(now time.Time) ID {
	return ID{ULID: ulid.MustNew(ulid.Timestamp(now), rand.Reader)}
}

// ParseID parses a canonical ULID string back into an ID.
func ParseID(s string) (ID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return ID{}, fmt.Errorf("task: invalid task id %q: %w", s, err)
	}
	return ID{ULID: u}, nil
}

func (id ID) String() string { return id.ULID.String() }

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("task: invalid task id literal %q", data)
	}
	parsed, err := ParseID(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
