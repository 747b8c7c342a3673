// Package id provides identifier types for the plugin host.
//
// Bridge requests get prefixed ULIDs so that a request can be followed
// through sandbox and host logs:
//   - Sortable: ULIDs order by creation time
//   - Prefixed: "req_01J..." reads well in logs
//   - Typed: EntrypointID and RequestID cannot be mixed up
//
// Entrypoint IDs are declared by the plugin manifest and wrapped, never
// generated.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one bridge request.
type RequestID string

// EntrypointID identifies a plugin-defined view or command.
type EntrypointID string

const RequestPrefix = "req"

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a "prefix_ULID" string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a request ID from the default generator.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (r RequestID) String() string    { return string(r) }
func (e EntrypointID) String() string { return string(e) }

// Timestamp extracts the creation time from a request ID.
func (r RequestID) Timestamp() (time.Time, error) {
	raw := strings.TrimPrefix(string(r), RequestPrefix+"_")
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// ParseEntrypointID wraps a plugin-supplied string, rejecting empty or
// whitespace-padded values.
func ParseEntrypointID(s string) (EntrypointID, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return "", fmt.Errorf("invalid entrypoint id %q", s)
	}
	return EntrypointID(s), nil
}
