package game

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/geometry"
)

// playerColors is the palette assigned in join order. Distinct per player
// for up to eight players; wraps after that.
var playerColors = []string{
	"#e6194b", "#4363d8", "#3cb44b", "#ffe119",
	"#911eb4", "#f58231", "#46f0f0", "#f032e6",
}

// GameNotification is delivered to an optional handler so the transport
// layer can observe resolution progress without polling.
type GameNotification struct {
	Type      string
	Timestamp time.Time
	Data      map[string]interface{}
}

// NotificationHandler receives game notifications. Handlers run in their
// own goroutine and must not block on the engine.
type NotificationHandler func(notification GameNotification)

// Game is the authoritative simulation instance for one match. The
// transport layer owns one Game per active match and must serialize calls
// into it: exactly one ResolveTurn in flight at a time, with no concurrent
// action submission against the same instance.
type Game struct {
	cfg    config.GameConfig
	logger *zap.Logger

	mu          sync.RWMutex
	turn        int
	players     map[string]*Player
	playerOrder []string
	entities    []*Entity
	links       []*Link
	gameMap     GameMap
	winner      string

	notify NotificationHandler
}

// New creates an empty game instance. Call InitializeGame before resolving
// turns.
func New(cfg config.GameConfig, logger *zap.Logger) *Game {
	return &Game{
		cfg:     cfg,
		logger:  logger,
		players: make(map[string]*Player),
	}
}

// SetNotificationHandler registers a handler for resolution progress
// notifications.
func (g *Game) SetNotificationHandler(handler NotificationHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notify = handler
}

// InitializeGame resets the instance to turn 1 with one player record and
// one starter hub per id, plus the static resource nodes. Player order
// determines color assignment and the deterministic hub spread.
func (g *Game) InitializeGame(playerIDs []string) error {
	if len(playerIDs) < 2 {
		return fmt.Errorf("at least 2 players required, got %d", len(playerIDs))
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" {
			return fmt.Errorf("player id must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate player id %q", id)
		}
		seen[id] = true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.turn = 1
	g.winner = ""
	g.entities = nil
	g.links = nil
	g.players = make(map[string]*Player, len(playerIDs))
	g.playerOrder = append([]string(nil), playerIDs...)
	g.gameMap = GameMap{
		Width:     g.cfg.MapWidth,
		Height:    g.cfg.MapHeight,
		Resources: seedResourceNodes(g.cfg),
	}

	n := float64(len(playerIDs))
	for i, id := range playerIDs {
		g.players[id] = &Player{
			ID:     id,
			Energy: g.cfg.StartingEnergy,
			Color:  playerColors[i%len(playerColors)],
			Alive:  true,
		}

		// Starter hubs spread evenly along the horizontal midline. Born
		// deployed: they never pass through the landing vulnerability window.
		x := (float64(i) + 0.5) * g.cfg.MapWidth / n
		hub := g.createEntity(entitySpec{
			Type:     EntityHub,
			Owner:    id,
			X:        x,
			Y:        g.cfg.MapHeight / 2,
			Deployed: true,
		})
		hub.IsStarter = true
	}

	if g.logger != nil {
		g.logger.Info("game initialized",
			zap.Strings("players", playerIDs),
			zap.Float64("map_width", g.cfg.MapWidth),
			zap.Float64("map_height", g.cfg.MapHeight),
		)
	}

	return nil
}

// seedResourceNodes places the static resource nodes evenly on a ring
// around the map center. Positions are deterministic so any two instances
// initialized with the same config agree.
func seedResourceNodes(cfg config.GameConfig) []ResourceNode {
	if cfg.ResourceNodes <= 0 {
		return nil
	}
	nodes := make([]ResourceNode, cfg.ResourceNodes)
	cx, cy := cfg.MapWidth/2, cfg.MapHeight/2
	radius := math.Min(cfg.MapWidth, cfg.MapHeight) / 3
	for i := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(cfg.ResourceNodes)
		x, y := geometry.WrapPoint(cx+radius*math.Cos(angle), cy+radius*math.Sin(angle), cfg.MapWidth, cfg.MapHeight)
		nodes[i] = ResourceNode{
			ID:    fmt.Sprintf("resource-%d", i),
			X:     x,
			Y:     y,
			Value: 1,
		}
	}
	return nodes
}

// State returns a deep, independent copy of the full authoritative state.
func (g *Game) State() *State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stateLocked()
}

// stateLocked builds a deep state copy. Callers must hold g.mu.
func (g *Game) stateLocked() *State {
	st := &State{
		Turn:     g.turn,
		Players:  make(map[string]*Player, len(g.players)),
		Entities: make([]*Entity, len(g.entities)),
		Links:    make([]*Link, len(g.links)),
		Map:      g.gameMap,
		Winner:   g.winner,
	}
	st.Map.Resources = append([]ResourceNode(nil), g.gameMap.Resources...)
	for id, p := range g.players {
		cp := *p
		st.Players[id] = &cp
	}
	for i, e := range g.entities {
		ce := *e
		st.Entities[i] = &ce
	}
	for i, l := range g.links {
		cl := *l
		st.Links[i] = &cl
	}
	return st
}

// Winner returns the winner marker, or "" while the game is live.
func (g *Game) Winner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.winner
}

// Turn returns the current turn number.
func (g *Game) Turn() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.turn
}
