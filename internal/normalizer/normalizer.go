// Package normalizer defines the contract backend-specific normalizers
// implement and the registry the recorder and reprocessor resolve them from.
package normalizer

import (
	"errors"
	"fmt"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
)

// Version tags rows written by the current mapping logic. Bump it whenever a
// normalizer's output for the same raw event changes; stored rows with an
// older tag are regenerated from raw events on reprocess.
const Version = 2

// Backend names.
const (
	BackendClaude = "claude"
	BackendCodex  = "codex"
)

// ErrMalformed reports a raw event that is not a processable record. The
// caller skips that single event and continues with the stream.
var ErrMalformed = errors.New("malformed raw event")

// Context carries per-session defaults a single raw event may omit.
type Context struct {
	SessionID string
	Model     string
}

// Normalizer converts one raw backend event into at most one canonical
// message. Implementations are pure and deterministic given their inputs.
//
// A nil message with a nil error means the event is suppressed noise
// (lifecycle/init/hook records). An unrecognized-but-well-formed shape never
// fails: it degrades to unknown parts. Only a structurally malformed record
// returns an error, wrapping ErrMalformed.
type Normalizer interface {
	Backend() string
	Normalize(raw []byte, ctx Context) (*normalized.Message, error)
}

// Registry resolves a normalizer by backend name. Construction funcs are
// registered by the backend packages' init via Register.
var registry = map[string]func() Normalizer{}

// Register installs a constructor for a backend name.
func Register(backend string, fn func() Normalizer) {
	registry[backend] = fn
}

// ForBackend returns a normalizer for the named backend.
func ForBackend(backend string) (Normalizer, error) {
	fn, ok := registry[backend]
	if !ok {
		return nil, fmt.Errorf("no normalizer for backend %q", backend)
	}
	return fn(), nil
}

// Backends lists the registered backend names.
func Backends() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
