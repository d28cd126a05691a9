package game

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/torusfall/torusfall-server/internal/geometry"
)

// launchDistance applies the non-linear power curve to a raw pull distance.
// Low pull is precise, high pull is twitchy: with exponent > 1 the same
// small change in pull moves the landing point much further near the top
// of the range. That skew is the intended skill expression, not an
// approximation.
func (g *Game) launchDistance(pull float64) float64 {
	if pull < 0 {
		pull = 0
	}
	if pull > g.cfg.MaxPull {
		pull = g.cfg.MaxPull
	}
	return math.Pow(pull/g.cfg.MaxPull, g.cfg.PowerExponent) * g.cfg.MaxLaunch
}

// PullForDistance inverts the power curve, returning the pull that lands a
// launch at exactly the given distance. Exposed for aim previews and bots.
func (g *Game) PullForDistance(distance float64) float64 {
	if distance <= 0 {
		return 0
	}
	if distance > g.cfg.MaxLaunch {
		distance = g.cfg.MaxLaunch
	}
	return math.Pow(distance/g.cfg.MaxLaunch, 1/g.cfg.PowerExponent) * g.cfg.MaxPull
}

// itemCost returns the energy cost of launching the given item type.
func (g *Game) itemCost(t EntityType) float64 {
	switch t {
	case EntityHub:
		return g.cfg.HubCost
	case EntityWeapon:
		return g.cfg.WeaponCost
	case EntityExtractor:
		return g.cfg.ExtractorCost
	case EntityDefense:
		return g.cfg.DefenseCost
	default:
		return 0
	}
}

// collectedAction is one player's contribution to a round.
type collectedAction struct {
	playerID string
	action   Action
}

// ResolveTurn resolves all players' queued actions for one turn and returns
// the ordered snapshot sequence for animation playback.
//
// Invalid actions are never errors: a source destroyed mid-resolution by
// another player's earlier action is a routine race under simultaneous
// turns, so stale input is skipped or dropped silently.
func (g *Game) ResolveTurn(actionsByPlayer map[string][]Action) []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Post-terminal resolution is a no-op: callers may resolve defensively
	// without checking state first.
	if g.winner != "" {
		return []Snapshot{{Type: SnapshotFinal, State: g.stateLocked()}}
	}

	notify := g.notify
	start := time.Now()
	snapshots := make([]Snapshot, 0, 32)

	// Energy income for every living player.
	for _, id := range g.playerOrder {
		if p := g.players[id]; p.Alive {
			p.Energy += g.cfg.TurnIncome
		}
	}
	snapshots = append(snapshots, Snapshot{Type: SnapshotEnergy, State: g.stateLocked()})

	// Round loop: each player holds an independent pointer into their own
	// queue; rounds repeat until nobody can contribute a valid action.
	pointers := make(map[string]int, len(g.playerOrder))
	rounds := 0
	for {
		if rounds >= g.cfg.MaxRounds {
			// Defensive stop only. Hitting this means the action queues
			// upstream are malformed and should be audited.
			if g.logger != nil {
				g.logger.Warn("round cap reached, terminating resolution",
					zap.Int("max_rounds", g.cfg.MaxRounds),
					zap.Int("turn", g.turn),
				)
			}
			break
		}

		collected := g.collectRound(actionsByPlayer, pointers)
		if len(collected) == 0 {
			break
		}
		rounds++

		snapshots = append(snapshots, g.simulateRound(rounds, collected)...)
		g.checkIntegrity()
		snapshots = append(snapshots, Snapshot{Type: SnapshotRound, Round: rounds, State: g.stateLocked()})

		if notify != nil {
			n := GameNotification{
				Type:      "ROUND_RESOLVED",
				Timestamp: time.Now(),
				Data:      map[string]interface{}{"round": rounds, "turn": g.turn},
			}
			go notify(n)
		}
	}

	g.finalizeTurn()
	snapshots = append(snapshots, Snapshot{Type: SnapshotFinal, State: g.stateLocked()})

	if g.logger != nil {
		g.logger.Info("turn resolved",
			zap.Int("turn", g.turn-1),
			zap.Int("rounds", rounds),
			zap.Int("snapshots", len(snapshots)),
			zap.String("winner", g.winner),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if notify != nil {
		n := GameNotification{
			Type:      "TURN_RESOLVED",
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"turn": g.turn, "winner": g.winner},
		}
		go notify(n)
	}

	return snapshots
}

// collectRound advances each player's queue pointer to the next executable
// action ("skip-and-slide"): entries whose source is gone, foreign, or out
// of fuel are consumed without executing, so a later queued action can
// still fire in an earlier round. Callers must hold g.mu.
func (g *Game) collectRound(actionsByPlayer map[string][]Action, pointers map[string]int) []collectedAction {
	var collected []collectedAction
	for _, playerID := range g.playerOrder {
		queue := actionsByPlayer[playerID]
		i := pointers[playerID]
		for i < len(queue) {
			action := queue[i]
			i++
			source := g.entityByID(action.SourceID)
			if source == nil || source.Owner != playerID {
				continue
			}
			if source.Type.HasFuel() && source.Fuel <= 0 {
				continue
			}
			collected = append(collected, collectedAction{playerID: playerID, action: action})
			break
		}
		pointers[playerID] = i
	}
	return collected
}

// simulateRound runs one simultaneous round over the configured number of
// sub-ticks and returns the ROUND_SUB snapshots captured along the way.
// Callers must hold g.mu.
func (g *Game) simulateRound(round int, collected []collectedAction) []Snapshot {
	projectiles := g.launchProjectiles(collected)

	var (
		snapshots []Snapshot
		effects   []Effect
		pending   = make(map[string]bool)
	)

	total := g.cfg.SubTicks
	for tick := 1; tick <= total; tick++ {
		// Interception before movement: each deployed, fueled defense takes
		// the single closest enemy projectile in range, one per fuel unit.
		for _, defense := range g.entities {
			if defense.Type != EntityDefense || !defense.Deployed || defense.Fuel <= 0 {
				continue
			}
			target := g.closestProjectile(defense, projectiles)
			if target == nil {
				continue
			}
			target.Active = false
			defense.Fuel--
			effects = append(effects, Effect{
				ID:      uuid.New().String(),
				Kind:    EffectIntercept,
				FromX:   defense.X,
				FromY:   defense.Y,
				ToX:     target.X,
				ToY:     target.Y,
				Expires: tick + g.cfg.SnapshotStride*3,
			})
		}

		// Advance along the vector captured at launch. Never re-derived from
		// current-position-to-target: past half the map width the shortest
		// toroidal path flips wrap direction, which would reverse a
		// projectile mid-flight.
		frac := float64(tick) / float64(total)
		for _, p := range projectiles {
			if !p.Active {
				continue
			}
			p.X, p.Y = geometry.WrapPoint(p.StartX+p.DX*frac, p.StartY+p.DY*frac, g.gameMap.Width, g.gameMap.Height)
		}

		if tick == total {
			g.resolveImpacts(projectiles, pending)
		}

		if tick%g.cfg.SnapshotStride == 0 || tick == total {
			live := make([]Effect, 0, len(effects))
			for _, fx := range effects {
				if fx.Expires >= tick {
					live = append(live, fx)
				}
			}
			snapshots = append(snapshots, Snapshot{
				Type:        SnapshotRoundSub,
				Round:       round,
				Tick:        tick,
				State:       g.stateLocked(),
				Projectiles: snapshotProjectiles(projectiles),
				Effects:     live,
			})
		}
	}

	// Simultaneous destruction, then the deployment moment: everything that
	// survived its landing round comes online at full hit points. An entity
	// destroyed while undeployed never reaches this step.
	g.destroyBatch(pending)
	for _, e := range g.entities {
		if !e.Deployed {
			e.Deployed = true
			e.HP = g.maxHP(e.Type)
		}
	}

	return snapshots
}

// launchProjectiles validates energy, deducts costs and fuel, and builds
// the in-flight projectiles for the round's collected actions. Actions with
// insufficient energy are dropped whole, with no partial effects. Callers
// must hold g.mu.
func (g *Game) launchProjectiles(collected []collectedAction) []*Projectile {
	projectiles := make([]*Projectile, 0, len(collected))
	for _, c := range collected {
		player := g.players[c.playerID]
		cost := g.itemCost(c.action.Item)
		if player == nil || player.Energy < cost {
			continue
		}
		source := g.entityByID(c.action.SourceID)
		if source == nil {
			continue
		}

		player.Energy -= cost
		if source.Type.HasFuel() {
			source.Fuel--
		}

		distance := g.launchDistance(c.action.Pull)
		radians := c.action.AngleDeg * math.Pi / 180
		dx := math.Cos(radians) * distance
		dy := math.Sin(radians) * distance

		projectiles = append(projectiles, &Projectile{
			ID:       uuid.New().String(),
			Owner:    c.playerID,
			Item:     c.action.Item,
			SourceID: source.ID,
			StartX:   source.X,
			StartY:   source.Y,
			X:        source.X,
			Y:        source.Y,
			DX:       dx,
			DY:       dy,
			Active:   true,
		})
	}
	return projectiles
}

// closestProjectile returns the nearest active enemy projectile within
// intercept range of the defense, or nil. Callers must hold g.mu.
func (g *Game) closestProjectile(defense *Entity, projectiles []*Projectile) *Projectile {
	var (
		closest *Projectile
		best    float64
	)
	for _, p := range projectiles {
		if !p.Active || p.Owner == defense.Owner {
			continue
		}
		d := geometry.ShortestDistance(defense.X, defense.Y, p.X, p.Y, g.gameMap.Width, g.gameMap.Height)
		if d > g.cfg.InterceptRange {
			continue
		}
		if closest == nil || d < best {
			closest = p
			best = d
		}
	}
	return closest
}

// resolveImpacts applies each surviving projectile's terminal effect
// exactly once, on the final sub-tick. Callers must hold g.mu.
func (g *Game) resolveImpacts(projectiles []*Projectile, pending map[string]bool) {
	for _, p := range projectiles {
		if !p.Active {
			continue
		}
		p.Active = false

		if p.Item.Deployable() {
			// Land as a structure in the one-round vulnerability window. The
			// link carries the flown vector so the rendered direction matches
			// the animation, not a recomputed shortest path.
			landed := g.createEntity(entitySpec{
				Type:     p.Item,
				Owner:    p.Owner,
				X:        p.X,
				Y:        p.Y,
				HP:       g.cfg.UndeployedHP,
				Deployed: false,
			})
			g.createLink(p.SourceID, landed.ID, p.Owner, p.DX, p.DY, true)
			continue
		}

		// Weapon impact: closest entity of any other owner within the hit
		// radius takes the full fixed damage.
		var (
			target *Entity
			best   float64
		)
		for _, e := range g.entities {
			if e.Owner == p.Owner {
				continue
			}
			d := geometry.ShortestDistance(p.X, p.Y, e.X, e.Y, g.gameMap.Width, g.gameMap.Height)
			if d > g.cfg.HitRadius {
				continue
			}
			if target == nil || d < best {
				target = e
				best = d
			}
		}
		if target != nil {
			target.HP -= g.cfg.ImpactDamage
			if target.HP <= 0 {
				pending[target.ID] = true
			}
		}
	}
}

// snapshotProjectiles copies the currently active projectiles by value for
// inclusion in a ROUND_SUB snapshot.
func snapshotProjectiles(projectiles []*Projectile) []Projectile {
	out := make([]Projectile, 0, len(projectiles))
	for _, p := range projectiles {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out
}

// finalizeTurn recomputes survival, declares a winner or draw, advances the
// turn counter, and refills every fuel system to capacity. Callers must
// hold g.mu.
func (g *Game) finalizeTurn() {
	aliveCount := 0
	var lastAlive string
	for _, id := range g.playerOrder {
		p := g.players[id]
		p.Alive = g.ownsHub(id)
		if p.Alive {
			aliveCount++
			lastAlive = id
		}
	}

	switch aliveCount {
	case 0:
		g.winner = DrawWinner
	case 1:
		g.winner = lastAlive
	}

	g.turn++

	// Full replenishment at turn boundaries, not incremental regeneration.
	for _, e := range g.entities {
		if e.Type.HasFuel() {
			e.Fuel = e.MaxFuel
		}
	}
}

// ownsHub reports whether the player owns at least one hub-type entity.
// Callers must hold g.mu.
func (g *Game) ownsHub(playerID string) bool {
	for _, e := range g.entities {
		if e.Owner == playerID && e.Type == EntityHub {
			return true
		}
	}
	return false
}
