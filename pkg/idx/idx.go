package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26 character form, optionally carrying a
// short prefix ("sub_01J...") so ids from different registries are easy to
// tell apart in logs.
type ID string

// Zero represents the zero value ID, don't use this unless its a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	globalOnce sync.Once
	global     *generator
)

// generator hands out monotonic ULIDs. The entropy source is not safe for
// concurrent use so every draw happens under the mutex.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *generator) newAt(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy)
}

func gen() *generator {
	globalOnce.Do(func() {
		global = &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
	})
	return global
}

// New returns a new lexicographically sortable ID using the current UTC time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt generates an ID at the provided time (UTC), useful for tests.
func NewAt(t time.Time) ID {
	return ID(gen().newAt(t).String())
}

// NewPrefixed returns a new ID of the form "<prefix>_<ulid>".
func NewPrefixed(prefix string) ID {
	if prefix == "" {
		return New()
	}
	return ID(prefix + "_" + gen().newAt(time.Now().UTC()).String())
}

// Parse validates s as a bare or prefixed ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}

	raw := s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	if _, err := ulid.ParseStrict(raw); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Prefix returns the prefix part of a prefixed ID, or "".
func (id ID) Prefix() string {
	if i := strings.LastIndexByte(string(id), '_'); i >= 0 {
		return string(id)[:i]
	}
	return ""
}

// Time extracts the embedded UTC timestamp. Invalid IDs yield the zero time.
func (id ID) Time() time.Time {
	raw := string(id)
	if i := strings.LastIndexByte(raw, '_'); i >= 0 {
		raw = raw[i+1:]
	}
	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
