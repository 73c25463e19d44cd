package normalizer_test

import (
	"testing"

	"github.com/AgentTrail/AgentTrail/internal/normalizer"

	_ "github.com/AgentTrail/AgentTrail/internal/normalizer/claude"
	_ "github.com/AgentTrail/AgentTrail/internal/normalizer/codex"
)

func TestRegistryResolvesBackends(t *testing.T) {
	for _, backend := range []string{normalizer.BackendClaude, normalizer.BackendCodex} {
		n, err := normalizer.ForBackend(backend)
		if err != nil {
			t.Fatalf("ForBackend(%s): %v", backend, err)
		}
		if n.Backend() != backend {
			t.Errorf("expected backend %s, got %s", backend, n.Backend())
		}
	}
}

func TestRegistryRejectsUnknownBackend(t *testing.T) {
	if _, err := normalizer.ForBackend("gemini"); err == nil {
		t.Fatal("expected error for unregistered backend")
	}
}

func TestBackendsLists(t *testing.T) {
	names := normalizer.Backends()
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen[normalizer.BackendClaude] || !seen[normalizer.BackendCodex] {
		t.Fatalf("expected both backends listed, got %v", names)
	}
}
