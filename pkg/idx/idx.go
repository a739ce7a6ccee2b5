// Package idx mints the ULIDs the portal uses for request ids and 2FA
// challenge ids. IDs minted in one process sort by creation time, even
// within the same millisecond.
package idx

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26 character form.
type ID string

func (id ID) String() string { return string(id) }

// Time is the millisecond the ID was minted at, or the zero time for a
// malformed ID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}

var gen = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

// New mints an ID for now.
func New() ID { return NewAt(time.Now()) }

// NewAt mints an ID for t.
func NewAt(t time.Time) ID {
	gen.Lock()
	defer gen.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), gen.entropy).String())
}

// Valid reports whether s is a canonical ULID. Callers use it to reject
// client supplied ids before a lookup.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
