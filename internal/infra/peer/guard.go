package peer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Policy is the operator-maintained peer trust file (~/.vaultmesh/
// peers.toml). An empty or absent allow list means every actor is
// accepted.
type Policy struct {
	AllowIDs []string `toml:"allow_ids"`
}

// Guard answers whether a pushing actor is allowed to ingest.
type Guard struct {
	allow map[string]struct{}
}

// LoadGuard reads the policy at path, falling back to the default
// location when path is empty. A missing or unreadable file yields an
// open guard; trust restrictions are opt-in.
func LoadGuard(path string) *Guard {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &Guard{}
		}
		path = filepath.Join(home, ".vaultmesh", "peers.toml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &Guard{}
	}
	var policy Policy
	if err := toml.Unmarshal(data, &policy); err != nil || len(policy.AllowIDs) == 0 {
		return &Guard{}
	}
	allow := make(map[string]struct{}, len(policy.AllowIDs))
	for _, id := range policy.AllowIDs {
		allow[id] = struct{}{}
	}
	return &Guard{allow: allow}
}

// Allowed reports whether the actor may push into this ledger.
func (g *Guard) Allowed(actorID string) bool {
	if g == nil || g.allow == nil {
		return true
	}
	_, ok := g.allow[actorID]
	return ok
}

func (g *Guard) String() string {
	if g == nil || g.allow == nil {
		return "open"
	}
	return fmt.Sprintf("allow-list(%d)", len(g.allow))
}
