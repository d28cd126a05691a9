package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/torusfall/torusfall-server/internal/config"
)

// testHarness wires a two-player game with the stock tuning for scenario
// tests that reach into internal state directly.
type testHarness struct {
	t       *testing.T
	game    *Game
	players []string
}

func newTestHarness(t *testing.T, players ...string) *testHarness {
	return newTunedHarness(t, config.DefaultGame(), players...)
}

// newTunedHarness builds a harness with adjusted tuning for scenarios that
// need non-stock damage or HP values.
func newTunedHarness(t *testing.T, cfg config.GameConfig, players ...string) *testHarness {
	t.Helper()
	if len(players) == 0 {
		players = []string{"player1", "player2"}
	}
	g := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, g.InitializeGame(players))
	return &testHarness{t: t, game: g, players: players}
}

// starterHub returns the player's starter hub entity.
func (h *testHarness) starterHub(playerID string) *Entity {
	h.t.Helper()
	hub := h.game.starterHub(playerID)
	require.NotNil(h.t, hub, "starter hub for %s", playerID)
	return hub
}

// addEntity places a structure directly, bypassing launch resolution.
func (h *testHarness) addEntity(spec entitySpec) *Entity {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	return h.game.createEntity(spec)
}

// linkEntities records a structural edge without a stored vector.
func (h *testHarness) linkEntities(fromID, toID, owner string) *Link {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	return h.game.createLink(fromID, toID, owner, 0, 0, false)
}

// destroy removes entities and their incident links in one batch.
func (h *testHarness) destroy(ids ...string) {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	h.game.destroyBatch(pending)
}

// destroyAllOwnedBy removes every entity a player owns.
func (h *testHarness) destroyAllOwnedBy(playerID string) {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	pending := make(map[string]bool)
	for _, e := range h.game.entities {
		if e.Owner == playerID {
			pending[e.ID] = true
		}
	}
	h.game.destroyBatch(pending)
}

// entityCount returns the number of live entities.
func (h *testHarness) entityCount() int {
	h.game.mu.RLock()
	defer h.game.mu.RUnlock()
	return len(h.game.entities)
}

// linkCount returns the number of live links.
func (h *testHarness) linkCount() int {
	h.game.mu.RLock()
	defer h.game.mu.RUnlock()
	return len(h.game.links)
}

// setEnergy overrides a player's energy balance.
func (h *testHarness) setEnergy(playerID string, energy float64) {
	h.game.mu.Lock()
	defer h.game.mu.Unlock()
	h.game.players[playerID].Energy = energy
}

// weaponAt builds a weapon action aimed to land exactly at the given map
// point, using the inverse power curve.
func (h *testHarness) weaponAt(playerID string, source *Entity, targetX, targetY float64) Action {
	return h.launchAt(playerID, source, EntityWeapon, targetX, targetY)
}

func (h *testHarness) launchAt(playerID string, source *Entity, item EntityType, targetX, targetY float64) Action {
	h.t.Helper()
	dx := targetX - source.X
	dy := targetY - source.Y
	distance := hypot(dx, dy)
	return Action{
		PlayerID: playerID,
		SourceID: source.ID,
		Item:     item,
		AngleDeg: angleDeg(dx, dy),
		Pull:     h.game.PullForDistance(distance),
	}
}

func hypot(dx, dy float64) float64 {
	return math.Hypot(dx, dy)
}

func angleDeg(dx, dy float64) float64 {
	return math.Atan2(dy, dx) * 180 / math.Pi
}

// countSnapshots returns how many snapshots carry the given type tag.
func countSnapshots(snapshots []Snapshot, st SnapshotType) int {
	n := 0
	for _, s := range snapshots {
		if s.Type == st {
			n++
		}
	}
	return n
}
