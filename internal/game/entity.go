package game

import "fmt"

// EntityType identifies the closed set of game object variants.
type EntityType int

const (
	EntityHub EntityType = iota
	EntityWeapon
	EntityExtractor
	EntityDefense
	EntityProjectile
	EntityEffect
)

var entityTypeNames = map[EntityType]string{
	EntityHub:        "HUB",
	EntityWeapon:     "WEAPON",
	EntityExtractor:  "EXTRACTOR",
	EntityDefense:    "DEFENSE",
	EntityProjectile: "PROJECTILE",
	EntityEffect:     "EFFECT",
}

func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ENTITY_TYPE_%d", int(t))
}

// HasFuel reports whether this entity type carries a fuel system. Fuel
// limits how many launches (hubs) or interceptions (defenses) a structure
// may originate before replenishment at turn end.
func (t EntityType) HasFuel() bool {
	return t == EntityHub || t == EntityDefense
}

// Deployable reports whether a projectile of this type lands as a structure
// rather than detonating.
func (t EntityType) Deployable() bool {
	switch t {
	case EntityHub, EntityExtractor, EntityDefense:
		return true
	default:
		return false
	}
}

// Entity is a structure on the map. Projectiles in flight are modeled
// separately (Projectile) and only appear inside ROUND_SUB snapshots.
type Entity struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	Owner     string     `json:"owner,omitempty"` // empty for neutral map features
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	HP        int        `json:"hp"`
	Fuel      int        `json:"fuel,omitempty"`
	MaxFuel   int        `json:"max_fuel,omitempty"`
	IsStarter bool       `json:"is_starter,omitempty"`
	Deployed  bool       `json:"deployed"`
	// Scouted is a fog-of-war annotation set only on visibility projections,
	// never on authoritative state.
	Scouted bool `json:"scouted,omitempty"`
}

// Link is a directed structural edge recording that ToID was launched from
// FromID. The direction vector is captured at creation because recomputing
// the shortest toroidal path between live endpoints can flip the wrap
// direction versus what was actually animated.
type Link struct {
	FromID    string  `json:"from_id"`
	ToID      string  `json:"to_id"`
	Owner     string  `json:"owner"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
	HasVector bool    `json:"has_vector"`
}

// Player holds per-player economy and status. Players are never removed
// once created.
type Player struct {
	ID     string  `json:"id"`
	Energy float64 `json:"energy"`
	Color  string  `json:"color"`
	Alive  bool    `json:"alive"`
}

// ResourceNode is a static map feature. Immutable after initialization.
type ResourceNode struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
}

// GameMap is the fixed-size toroidal world.
type GameMap struct {
	Width     float64        `json:"width"`
	Height    float64        `json:"height"`
	Resources []ResourceNode `json:"resources"`
}

// Projectile is an in-flight launch. Position is always interpolated from
// the start point along the intended vector captured at launch; it is never
// re-aimed at a target.
type Projectile struct {
	ID       string     `json:"id"`
	Owner    string     `json:"owner"`
	Item     EntityType `json:"item"`
	SourceID string     `json:"source_id"`
	StartX   float64    `json:"start_x"`
	StartY   float64    `json:"start_y"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	DX       float64    `json:"dx"`
	DY       float64    `json:"dy"`
	Active   bool       `json:"active"`
}

// Effect is a transient visual marker (currently only interception beams)
// carried inside ROUND_SUB snapshots for animation.
type Effect struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	FromX   float64 `json:"from_x"`
	FromY   float64 `json:"from_y"`
	ToX     float64 `json:"to_x"`
	ToY     float64 `json:"to_y"`
	Expires int     `json:"expires"` // sub-tick after which the effect decays
}

// EffectIntercept is the interception beam effect kind.
const EffectIntercept = "INTERCEPT_BEAM"

// Action is one queued player launch. Invalid actions (stale source,
// insufficient energy, exhausted fuel) are skipped silently during
// resolution, never surfaced as errors.
type Action struct {
	PlayerID string     `json:"player_id"`
	SourceID string     `json:"source_id"`
	Item     EntityType `json:"item"`
	AngleDeg float64    `json:"angle_deg"`
	Pull     float64    `json:"pull"`
}

// DrawWinner is the winner marker for a game where no player survived.
const DrawWinner = "DRAW"

// State is a full authoritative game state. Values returned by the engine
// are deep copies, never live-aliased references.
type State struct {
	Turn     int                `json:"turn"`
	Players  map[string]*Player `json:"players"`
	Entities []*Entity          `json:"entities"`
	Links    []*Link            `json:"links"`
	Map      GameMap            `json:"map"`
	Winner   string             `json:"winner,omitempty"`
}

// Entity returns the entity with the given id, or nil.
func (s *State) Entity(id string) *Entity {
	for _, e := range s.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := &State{
		Turn:     s.Turn,
		Players:  make(map[string]*Player, len(s.Players)),
		Entities: make([]*Entity, len(s.Entities)),
		Links:    make([]*Link, len(s.Links)),
		Map:      s.Map,
		Winner:   s.Winner,
	}
	out.Map.Resources = append([]ResourceNode(nil), s.Map.Resources...)
	for id, p := range s.Players {
		cp := *p
		out.Players[id] = &cp
	}
	for i, e := range s.Entities {
		ce := *e
		out.Entities[i] = &ce
	}
	for i, l := range s.Links {
		cl := *l
		out.Links[i] = &cl
	}
	return out
}
