package generator

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RoomIDPrefix marks identifiers minted for live rooms.
const RoomIDPrefix = "ls-"

// IDGenerator mints opaque identifiers.
type IDGenerator interface {
	Generate() (string, error)
}

// ULIDGenerator generates room ids from a ULID: a millisecond timestamp
// followed by random entropy. Ids minted within the same millisecond stay
// ordered because the entropy source is monotonic.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *ULIDGenerator) Generate() (string, error) {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return RoomIDPrefix + strings.ToLower(id.String()), nil
}
