package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero represents the zero value ID, don't use this unless its a placeholder.
const Zero ID = ""

// Document prefixes. Documents in the global store are keyed by a short
// type prefix followed by a ULID so a raw key tells you what it points at.
const (
	PrefixUser       = "us"
	PrefixSession    = "se"
	PrefixInvite     = "in"
	PrefixQuota      = "qu"
	PrefixDatasource = "ds"
	PrefixTable      = "ta"
	PrefixQuery      = "qy"
)

const separator = "_"

// ErrInvalid reports a malformed ID string.
var ErrInvalid = errors.New("idx: invalid id")

var (
	globalOnce sync.Once
	global     *generator
)

// generator safely generates ULIDs concurrently using a monotonic source.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *generator) newAt(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), g.entropy)
}

func initGlobal() {
	global = &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a new lexicographically sortable ULID-based ID using the
// current time in UTC.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt generates an ID at the provided time (UTC), useful for tests.
func NewAt(t time.Time) ID {
	globalOnce.Do(initGlobal)
	return ID(global.newAt(t).String())
}

// NewPrefixed returns a document key such as "us_01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV".
func NewPrefixed(prefix string) ID {
	return ID(prefix + separator + New().String())
}

// Parse validates either a bare ULID or a prefixed document key.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}

	raw := s
	if i := strings.LastIndex(s, separator); i >= 0 {
		if i == 0 {
			return Zero, ErrInvalid
		}
		raw = s[i+1:]
	}

	if _, err := ulid.ParseStrict(raw); err != nil {
		return Zero, ErrInvalid
	}

	return ID(s), nil
}

// MustParse parses or panics. Useful for hard-coded IDs in tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// HasPrefix reports whether id is a document key of the given type.
func (id ID) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(id), prefix+separator)
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded UTC timestamp from the ID, or the zero time
// for malformed IDs.
func (id ID) Time() time.Time {
	raw := string(id)
	if i := strings.LastIndex(raw, separator); i >= 0 {
		raw = raw[i+1:]
	}

	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
