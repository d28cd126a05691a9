package game

import (
	"github.com/google/uuid"

	"github.com/torusfall/torusfall-server/internal/geometry"
)

// entitySpec carries creation parameters for createEntity. Zero values fall
// back to the per-type defaults from the game config.
type entitySpec struct {
	Type     EntityType
	Owner    string
	X, Y     float64
	HP       int
	Fuel     int
	Deployed bool
}

// maxHP returns the full hit-point maximum for a structure type. Undeployed
// structures sit at the configured vulnerability HP until promotion.
func (g *Game) maxHP(t EntityType) int {
	switch t {
	case EntityHub:
		return g.cfg.HubHP
	case EntityExtractor:
		return g.cfg.ExtractorHP
	case EntityDefense:
		return g.cfg.DefenseHP
	default:
		return g.cfg.DefaultHP
	}
}

// fuelCapacity returns the per-type fuel seed, or 0 for types without a
// fuel system.
func (g *Game) fuelCapacity(t EntityType) int {
	switch t {
	case EntityHub:
		return g.cfg.HubFuel
	case EntityDefense:
		return g.cfg.DefenseFuel
	default:
		return 0
	}
}

// createEntity appends a new entity with a fresh id, wrapped position, and
// per-type fuel/HP defaults. Callers must hold g.mu.
func (g *Game) createEntity(spec entitySpec) *Entity {
	x, y := geometry.WrapPoint(spec.X, spec.Y, g.gameMap.Width, g.gameMap.Height)

	e := &Entity{
		ID:       uuid.New().String(),
		Type:     spec.Type,
		Owner:    spec.Owner,
		X:        x,
		Y:        y,
		HP:       spec.HP,
		Deployed: spec.Deployed,
	}
	if e.HP == 0 {
		e.HP = g.maxHP(spec.Type)
	}
	if spec.Type.HasFuel() {
		capacity := g.fuelCapacity(spec.Type)
		e.MaxFuel = capacity
		e.Fuel = capacity
		if spec.Fuel > 0 {
			e.Fuel = spec.Fuel
		}
	}
	if !spec.Deployed && !spec.Type.Deployable() {
		e.Deployed = true
	}

	g.entities = append(g.entities, e)
	return e
}

// createLink records the directed structural edge from a launch source to
// the structure it spawned, with the intended direction vector captured at
// creation time. Callers must hold g.mu.
func (g *Game) createLink(fromID, toID, owner string, dx, dy float64, hasVector bool) *Link {
	l := &Link{
		FromID:    fromID,
		ToID:      toID,
		Owner:     owner,
		DX:        dx,
		DY:        dy,
		HasVector: hasVector,
	}
	g.links = append(g.links, l)
	return l
}

// entityByID returns the live entity with the given id. Callers must hold
// g.mu.
func (g *Game) entityByID(id string) *Entity {
	for _, e := range g.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// starterHub returns the player's starter hub, or nil if already destroyed.
// Callers must hold g.mu.
func (g *Game) starterHub(playerID string) *Entity {
	for _, e := range g.entities {
		if e.Owner == playerID && e.IsStarter {
			return e
		}
	}
	return nil
}

// destroyBatch removes every entity in the pending set plus every link
// touching a removed entity, in a single pass. The batch semantics make
// simultaneous destruction explicit: order of insertion into the set never
// affects the surviving state. Callers must hold g.mu.
func (g *Game) destroyBatch(pending map[string]bool) {
	if len(pending) == 0 {
		return
	}

	entities := g.entities[:0]
	for _, e := range g.entities {
		if !pending[e.ID] {
			entities = append(entities, e)
		}
	}
	g.entities = entities

	links := g.links[:0]
	for _, l := range g.links {
		if !pending[l.FromID] && !pending[l.ToID] {
			links = append(links, l)
		}
	}
	g.links = links
}
