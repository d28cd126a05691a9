package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTurn_EnergyIncome(t *testing.T) {
	h := newTestHarness(t)
	before := h.game.State().Players["player1"].Energy

	snapshots := h.game.ResolveTurn(nil)

	require.NotEmpty(t, snapshots)
	assert.Equal(t, SnapshotEnergy, snapshots[0].Type)
	assert.Equal(t, SnapshotFinal, snapshots[len(snapshots)-1].Type)

	income := h.game.cfg.TurnIncome
	assert.InDelta(t, before+income, h.game.State().Players["player1"].Energy, 1e-9)
	assert.InDelta(t, before+income, h.game.State().Players["player2"].Energy, 1e-9)
}

func TestResolveTurn_AdvancesTurnCounter(t *testing.T) {
	h := newTestHarness(t)
	assert.Equal(t, 1, h.game.Turn())
	h.game.ResolveTurn(nil)
	assert.Equal(t, 2, h.game.Turn())
}

func TestResolveTurn_SkipAndSlide(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	// Action 1 references a source that no longer exists; action 2 is
	// valid. Skip-and-slide means action 2 fires in round 1, not round 2.
	actions := map[string][]Action{
		"player1": {
			{PlayerID: "player1", SourceID: "destroyed-before-resolution", Item: EntityWeapon, AngleDeg: 0, Pull: 50},
			h.launchAt("player1", hub, EntityExtractor, 350, 500),
		},
	}

	snapshots := h.game.ResolveTurn(actions)

	assert.Equal(t, 1, countSnapshots(snapshots, SnapshotRound), "both queue entries consumed in one round")

	st := h.game.State()
	found := false
	for _, e := range st.Entities {
		if e.Type == EntityExtractor && e.Owner == "player1" {
			found = true
		}
	}
	assert.True(t, found, "second queued action should have executed in round 1")
}

func TestResolveTurn_FuelExhaustedSourceSkipped(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	h.game.mu.Lock()
	hub.Fuel = 0
	h.game.mu.Unlock()

	actions := map[string][]Action{
		"player1": {h.weaponAt("player1", hub, 750, 500)},
	}
	snapshots := h.game.ResolveTurn(actions)

	assert.Equal(t, 0, countSnapshots(snapshots, SnapshotRound), "fuel-exhausted source contributes nothing")
	assert.NotNil(t, h.game.State().Entity(h.starterHub("player2").ID))
}

func TestResolveTurn_InsufficientEnergyDroppedSilently(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")
	h.setEnergy("player1", 0)

	// Income brings energy to 1; a hub costs more, so the action is
	// dropped whole with no partial effects.
	actions := map[string][]Action{
		"player1": {h.launchAt("player1", hub, EntityHub, 400, 500)},
	}
	h.game.ResolveTurn(actions)

	st := h.game.State()
	hubs := 0
	for _, e := range st.Entities {
		if e.Owner == "player1" && e.Type == EntityHub {
			hubs++
		}
	}
	assert.Equal(t, 1, hubs, "no hub deployed")
	assert.InDelta(t, h.game.cfg.TurnIncome, st.Players["player1"].Energy, 1e-9, "no cost deducted")
}

func TestResolveTurn_DeploymentAndLinkVector(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	actions := map[string][]Action{
		"player1": {h.launchAt("player1", hub, EntityExtractor, 450, 500)},
	}
	h.game.ResolveTurn(actions)

	st := h.game.State()
	var extractor *Entity
	for _, e := range st.Entities {
		if e.Type == EntityExtractor {
			extractor = e
		}
	}
	require.NotNil(t, extractor)
	assert.True(t, extractor.Deployed, "survivor promoted at round end")
	assert.Equal(t, h.game.cfg.ExtractorHP, extractor.HP, "promotion restores full HP")
	assert.InDelta(t, 450, extractor.X, 1.0)
	assert.InDelta(t, 500, extractor.Y, 1.0)

	require.Len(t, st.Links, 1)
	link := st.Links[0]
	assert.Equal(t, hub.ID, link.FromID)
	assert.Equal(t, extractor.ID, link.ToID)
	assert.True(t, link.HasVector, "link keeps the flown vector")
	assert.InDelta(t, 200, link.DX, 1.0)
	assert.InDelta(t, 0, link.DY, 1.0)
}

func TestResolveTurn_UndeployedVulnerabilityWindow(t *testing.T) {
	h := newTestHarness(t)
	hub1 := h.starterHub("player1")
	hub2 := h.starterHub("player2")

	// player1 deploys an extractor; player2 fires a weapon at the landing
	// point in the same round. The freshly landed structure sits at the
	// vulnerability HP and dies before promotion.
	actions := map[string][]Action{
		"player1": {h.launchAt("player1", hub1, EntityExtractor, 500, 500)},
		"player2": {h.weaponAt("player2", hub2, 500, 500)},
	}
	h.game.ResolveTurn(actions)

	st := h.game.State()
	for _, e := range st.Entities {
		assert.NotEqual(t, EntityExtractor, e.Type, "undeployed structure should be destroyed before promotion")
	}
	assert.Empty(t, st.Links, "links die with their endpoint")
}

func TestResolveTurn_FuelGatedInterception(t *testing.T) {
	h := newTestHarness(t)
	hub1 := h.starterHub("player1")
	hub2 := h.starterHub("player2")

	// A deployed defense with 1 fuel sits on player1's firing line. It
	// intercepts the first weapon; the second, fired in the next round of
	// the same turn, must get through because fuel only refills at turn
	// end.
	defense := h.addEntity(entitySpec{Type: EntityDefense, Owner: "player2", X: 450, Y: 500, Deployed: true})
	h.linkEntities(hub2.ID, defense.ID, "player2")
	require.Equal(t, 1, defense.MaxFuel)

	actions := map[string][]Action{
		"player1": {
			h.weaponAt("player1", hub1, 750, 500),
			h.weaponAt("player1", hub1, 750, 500),
		},
	}
	snapshots := h.game.ResolveTurn(actions)

	assert.Equal(t, 2, countSnapshots(snapshots, SnapshotRound))

	intercepts := 0
	for _, s := range snapshots {
		for _, fx := range s.Effects {
			if fx.Kind == EffectIntercept {
				intercepts++
			}
		}
	}
	assert.Greater(t, intercepts, 0, "first weapon intercepted")

	st := h.game.State()
	assert.Nil(t, st.Entity(hub2.ID), "second weapon should reach the hub")
	assert.Equal(t, "player1", st.Winner)
}

func TestResolveTurn_UndeployedDefenseDoesNotIntercept(t *testing.T) {
	h := newTestHarness(t)
	hub1 := h.starterHub("player1")
	hub2 := h.starterHub("player2")

	defense := h.addEntity(entitySpec{Type: EntityDefense, Owner: "player2", X: 450, Y: 500, HP: 1, Deployed: false})
	h.linkEntities(hub2.ID, defense.ID, "player2")

	actions := map[string][]Action{
		"player1": {h.weaponAt("player1", hub1, 750, 500)},
	}
	snapshots := h.game.ResolveTurn(actions)

	for _, s := range snapshots {
		for _, fx := range s.Effects {
			assert.NotEqual(t, EffectIntercept, fx.Kind, "defense in landing window must not intercept")
		}
	}
	assert.Nil(t, h.game.State().Entity(hub2.ID))
}

func TestResolveTurn_FuelRefillsAtTurnEnd(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	actions := map[string][]Action{
		"player1": {h.launchAt("player1", hub, EntityExtractor, 350, 500)},
	}
	h.game.ResolveTurn(actions)

	refreshed := h.game.State().Entity(hub.ID)
	require.NotNil(t, refreshed)
	assert.Equal(t, refreshed.MaxFuel, refreshed.Fuel, "full replenishment at finalization")
}

func TestResolveTurn_WinCondition(t *testing.T) {
	h := newTestHarness(t)

	h.destroyAllOwnedBy("player2")
	h.game.ResolveTurn(nil)

	st := h.game.State()
	assert.Equal(t, "player1", st.Winner)
	assert.False(t, st.Players["player2"].Alive)
	assert.True(t, st.Players["player1"].Alive)
}

func TestResolveTurn_Draw(t *testing.T) {
	h := newTestHarness(t)

	h.destroyAllOwnedBy("player1")
	h.destroyAllOwnedBy("player2")
	h.game.ResolveTurn(nil)

	assert.Equal(t, DrawWinner, h.game.State().Winner)
}

func TestResolveTurn_NoWinnerWhileBothAlive(t *testing.T) {
	h := newTestHarness(t)
	h.game.ResolveTurn(nil)
	assert.Empty(t, h.game.State().Winner)
}

func TestResolveTurn_PostTerminalNoOp(t *testing.T) {
	h := newTestHarness(t)

	h.destroyAllOwnedBy("player2")
	h.game.ResolveTurn(nil)
	require.NotEmpty(t, h.game.Winner())

	turnBefore := h.game.Turn()
	hub1 := h.starterHub("player1")
	snapshots := h.game.ResolveTurn(map[string][]Action{
		"player1": {h.weaponAt("player1", hub1, 500, 500)},
	})

	require.Len(t, snapshots, 1)
	assert.Equal(t, SnapshotFinal, snapshots[0].Type)
	assert.Equal(t, turnBefore, h.game.Turn(), "turn counter must not advance after terminal state")
}

func TestResolveTurn_RoundCap(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	h.game.mu.Lock()
	hub.Fuel = 50
	hub.MaxFuel = 50
	h.game.players["player1"].Energy = 100
	h.game.mu.Unlock()

	queue := make([]Action, 0, 30)
	for i := 0; i < 30; i++ {
		queue = append(queue, h.launchAt("player1", hub, EntityWeapon, 100, 100))
	}
	snapshots := h.game.ResolveTurn(map[string][]Action{"player1": queue})

	assert.Equal(t, h.game.cfg.MaxRounds, countSnapshots(snapshots, SnapshotRound),
		"hard cap terminates a runaway queue")
}

func TestResolveTurn_SubSnapshotCadence(t *testing.T) {
	h := newTestHarness(t)
	hub := h.starterHub("player1")

	snapshots := h.game.ResolveTurn(map[string][]Action{
		"player1": {h.weaponAt("player1", hub, 400, 400)},
	})

	subs := countSnapshots(snapshots, SnapshotRoundSub)
	// Every 4th sub-tick of 120 is 30 frames; the final tick coincides
	// with the stride so nothing extra is appended.
	assert.Equal(t, h.game.cfg.SubTicks/h.game.cfg.SnapshotStride, subs)

	var last Snapshot
	for _, s := range snapshots {
		if s.Type == SnapshotRoundSub {
			last = s
		}
	}
	assert.Equal(t, h.game.cfg.SubTicks, last.Tick, "final sub-tick always captured")
}
