package game

import (
	"math"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/geometry"
)

// VisionCircle is one vision source: a player entity position with its
// type-dependent radius. Exposed for UI aim/vision previews.
type VisionCircle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// visionRadius returns the vision radius contributed by an entity type.
// Types with no configured radius contribute no vision.
func visionRadius(cfg config.GameConfig, t EntityType) float64 {
	switch t {
	case EntityHub:
		return cfg.HubVision
	case EntityExtractor:
		return cfg.ExtractorVision
	case EntityDefense:
		return cfg.DefenseVision
	default:
		return 0
	}
}

// visionCirclesFor collects the requesting player's vision sources from a
// state snapshot.
func visionCirclesFor(cfg config.GameConfig, playerID string, st *State) []VisionCircle {
	var circles []VisionCircle
	for _, e := range st.Entities {
		if e.Owner != playerID {
			continue
		}
		r := visionRadius(cfg, e.Type)
		if r <= 0 {
			continue
		}
		circles = append(circles, VisionCircle{X: e.X, Y: e.Y, Radius: r})
	}
	return circles
}

// positionVisible reports whether a point falls inside any vision circle,
// by shortest toroidal distance.
func positionVisible(circles []VisionCircle, x, y, width, height float64) bool {
	for _, c := range circles {
		if geometry.ShortestDistance(x, y, c.X, c.Y, width, height) <= c.Radius {
			return true
		}
	}
	return false
}

// ProjectVisible computes a player's fog-of-war projection of a full state
// snapshot. Pure: the input state is never mutated. A spectator (empty
// player id) gets full visibility.
//
// Included entities carry Scouted = true only when owned or actively in
// vision; an entity included solely because a visible link touches it is
// known-to-exist but not seen. The function works on any snapshot, live or
// historical, so playback can be filtered frame by frame.
func ProjectVisible(cfg config.GameConfig, playerID string, st *State) *State {
	if playerID == "" {
		return st.Clone()
	}

	w, h := st.Map.Width, st.Map.Height
	circles := visionCirclesFor(cfg, playerID, st)

	// First pass: ownership and direct vision.
	scouted := make(map[string]bool)
	included := make(map[string]bool)
	for _, e := range st.Entities {
		if e.Owner == playerID || positionVisible(circles, e.X, e.Y, w, h) {
			included[e.ID] = true
			scouted[e.ID] = true
		}
	}

	// Second pass: links. A link is visible if either endpoint already is,
	// or if any point sampled along its path crosses vision. A midpoint
	// crossing the player's territory reveals the link even when both
	// endpoints are hidden, and force-includes the endpoints unscouted.
	var links []*Link
	for _, l := range st.Links {
		from := st.Entity(l.FromID)
		to := st.Entity(l.ToID)
		if from == nil || to == nil {
			continue
		}

		if included[from.ID] || included[to.ID] {
			cl := *l
			links = append(links, &cl)
			included[from.ID] = true
			included[to.ID] = true
			continue
		}

		if linkPathVisible(cfg, circles, from, to, l, w, h) {
			cl := *l
			links = append(links, &cl)
			included[from.ID] = true
			included[to.ID] = true
		}
	}

	out := &State{
		Turn:    st.Turn,
		Players: make(map[string]*Player, len(st.Players)),
		Map:     st.Map,
		Winner:  st.Winner,
	}
	out.Map.Resources = append([]ResourceNode(nil), st.Map.Resources...)
	for id, p := range st.Players {
		cp := *p
		out.Players[id] = &cp
	}
	for _, e := range st.Entities {
		if !included[e.ID] {
			continue
		}
		ce := *e
		ce.Scouted = scouted[e.ID]
		out.Entities = append(out.Entities, &ce)
	}
	out.Links = links

	return out
}

// linkPathVisible samples the link's path at the configured step resolution
// and reports whether any sample falls inside vision. The stored intended
// vector is preferred; a recomputed shortest path is the fallback for links
// created without one.
func linkPathVisible(cfg config.GameConfig, circles []VisionCircle, from, to *Entity, l *Link, w, h float64) bool {
	dx, dy := l.DX, l.DY
	if !l.HasVector {
		dx, dy = geometry.ShortestVector(from.X, from.Y, to.X, to.Y, w, h)
	}
	length := math.Hypot(dx, dy)
	if length == 0 {
		return false
	}
	steps := int(length/cfg.LinkSampleStep) + 1
	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		x, y := geometry.WrapPoint(from.X+dx*frac, from.Y+dy*frac, w, h)
		if positionVisible(circles, x, y, w, h) {
			return true
		}
	}
	return false
}

// ProjectVisibleSnapshot applies the fog-of-war projection to a whole
// resolution frame: the state plus the in-flight projectiles and transient
// effects carried alongside it. A projectile is kept when the viewer owns it
// or its current position is in vision; an effect is kept when either of its
// endpoints is. A spectator (empty player id) gets the frame unfiltered.
func ProjectVisibleSnapshot(cfg config.GameConfig, playerID string, snap Snapshot) Snapshot {
	out := snap
	if snap.State != nil {
		out.State = ProjectVisible(cfg, playerID, snap.State)
	}
	if playerID == "" || snap.State == nil {
		return out
	}

	w, h := snap.State.Map.Width, snap.State.Map.Height
	circles := visionCirclesFor(cfg, playerID, snap.State)

	if len(snap.Projectiles) > 0 {
		kept := make([]Projectile, 0, len(snap.Projectiles))
		for _, p := range snap.Projectiles {
			if p.Owner == playerID || positionVisible(circles, p.X, p.Y, w, h) {
				kept = append(kept, p)
			}
		}
		out.Projectiles = kept
	}
	if len(snap.Effects) > 0 {
		kept := make([]Effect, 0, len(snap.Effects))
		for _, fx := range snap.Effects {
			if positionVisible(circles, fx.FromX, fx.FromY, w, h) ||
				positionVisible(circles, fx.ToX, fx.ToY, w, h) {
				kept = append(kept, fx)
			}
		}
		out.Effects = kept
	}
	return out
}

// VisibleState returns the requesting player's fog-of-war projection. When
// base is nil the current authoritative state is projected; passing a
// historical snapshot state filters that snapshot instead.
func (g *Game) VisibleState(playerID string, base *State) *State {
	if base == nil {
		base = g.State()
	}
	return ProjectVisible(g.cfg, playerID, base)
}

// IsPositionVisible reports whether a map point is inside the player's
// current vision. A spectator sees everything.
func (g *Game) IsPositionVisible(playerID string, x, y float64) bool {
	if playerID == "" {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	circles := visionCirclesFor(g.cfg, playerID, &State{Entities: g.entities, Map: g.gameMap})
	return positionVisible(circles, x, y, g.gameMap.Width, g.gameMap.Height)
}

// VisionCircles returns the player's current vision sources for UI
// previews.
func (g *Game) VisionCircles(playerID string) []VisionCircle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return visionCirclesFor(g.cfg, playerID, &State{Entities: g.entities, Map: g.gameMap})
}
