// Package server exposes the match service over websockets: login, match
// lifecycle, action commits, and paced fog-of-war snapshot streaming.
package server

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/game"
	"github.com/torusfall/torusfall-server/internal/match"
	"github.com/torusfall/torusfall-server/internal/session"
)

// WSMessage is the JSON envelope for both directions.
type WSMessage struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

type credentialsPayload struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type createMatchPayload struct {
	Name string `json:"name"`
}

type commitPayload struct {
	Actions []game.Action `json:"actions"`
}

type matchStatePayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	State     string          `json:"state"`
	Players   []string        `json:"players"`
	Committed map[string]bool `json:"committed"`
	Turn      int             `json:"turn"`
	Winner    string          `json:"winner,omitempty"`
}

func matchState(snap match.MatchSnapshot) matchStatePayload {
	return matchStatePayload{
		ID:        snap.ID,
		Name:      snap.Name,
		State:     snap.State.String(),
		Players:   snap.Players,
		Committed: snap.Committed,
		Turn:      snap.Turn,
		Winner:    snap.Winner,
	}
}

// Hub tracks connected clients and fans resolved turns out to them.
type Hub struct {
	cfg         config.WebSocketConfig
	gameCfg     config.GameConfig
	maxSessions int

	sessions *session.Manager
	creds    *session.CredentialStore
	matches  *match.Manager

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	queries    chan func()
	done       chan struct{}

	logger *zap.Logger
}

// NewHub creates the client hub.
func NewHub(cfg config.ServerConfig, gameCfg config.GameConfig, sessions *session.Manager, creds *session.CredentialStore, matches *match.Manager, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:         cfg.WebSocket,
		gameCfg:     gameCfg,
		maxSessions: cfg.MaxSessions,
		sessions:    sessions,
		creds:       creds,
		matches:     matches,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		queries:     make(chan func()),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run owns the client set until the context is cancelled. The done channel
// closes on exit so late unregisters and queries fail fast instead of
// blocking on a loop that is no longer draining.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case query := <-h.queries:
			query()

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.sessionID != "" {
					h.sessions.RemoveSession(client.sessionID)
				}
				if client.matchID != "" && client.spectator {
					if m, ok := h.matches.GetMatch(client.matchID); ok {
						m.RemoveWatcher(client.playerName)
					}
				}
				h.logger.Debug("client unregistered", zap.String("player", client.playerName))
			}
		}
	}
}

// matchClients snapshots the clients attached to a match. Called from the
// streaming goroutine; the read runs through the run loop's channel pair to
// avoid racing the client set.
func (h *Hub) matchClients(matchID string) []*Client {
	result := make(chan []*Client, 1)
	query := func() {
		clients := make([]*Client, 0, 4)
		for c := range h.clients {
			if c.matchID == matchID {
				clients = append(clients, c)
			}
		}
		result <- clients
	}
	select {
	case h.queries <- query:
		return <-result
	case <-h.done:
		return nil
	case <-time.After(time.Second):
		return nil
	}
}

// dropClient hands a disconnecting client back to the run loop. After
// shutdown the loop is gone, so the send races the done channel rather than
// blocking a read pump forever.
func (h *Hub) dropClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleMessage(c *Client, msg WSMessage) {
	switch msg.Type {
	case "register":
		h.handleRegister(c, msg)
	case "login":
		h.handleLogin(c, msg)
	case "create_match":
		h.handleCreateMatch(c, msg)
	case "join_match":
		h.handleJoinMatch(c, msg)
	case "watch_match":
		h.handleWatchMatch(c, msg)
	case "start_match":
		h.handleStartMatch(c)
	case "commit_actions":
		h.handleCommitActions(c, msg)
	case "quit_match":
		h.handleQuitMatch(c)
	case "list_matches":
		h.handleListMatches(c)
	default:
		c.sendError("unknown message type")
	}
}

func (h *Hub) handleRegister(c *Client, msg WSMessage) {
	var creds credentialsPayload
	if err := json.Unmarshal(msg.Data, &creds); err != nil {
		c.sendError("malformed credentials")
		return
	}
	if err := h.creds.Register(creds.Name, creds.Password); err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendJSON(WSMessage{Type: "registered"})
}

func (h *Hub) handleLogin(c *Client, msg WSMessage) {
	var creds credentialsPayload
	if err := json.Unmarshal(msg.Data, &creds); err != nil {
		c.sendError("malformed credentials")
		return
	}
	if err := h.creds.Authenticate(creds.Name, creds.Password); err != nil {
		c.sendError("invalid credentials")
		return
	}
	if h.maxSessions > 0 && h.sessions.SessionCount() >= h.maxSessions {
		c.sendError("server full")
		return
	}

	s, err := h.sessions.CreateSession(creds.Name)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sessionID = s.ID
	c.playerName = creds.Name

	h.logger.Info("player logged in", zap.String("player", creds.Name))
	c.sendJSON(WSMessage{Type: "logged_in", Data: mustRaw(map[string]string{
		"session_id": s.ID,
		"player":     creds.Name,
	})})
}

func (h *Hub) handleCreateMatch(c *Client, msg WSMessage) {
	if c.playerName == "" {
		c.sendError("login required")
		return
	}
	var payload createMatchPayload
	if msg.Data != nil {
		json.Unmarshal(msg.Data, &payload)
	}
	if payload.Name == "" {
		payload.Name = c.playerName + "'s match"
	}

	m := h.matches.CreateMatch(payload.Name)
	h.attachStream(m)
	if err := m.AddPlayer(c.playerName); err != nil {
		c.sendError(err.Error())
		return
	}
	c.matchID = m.ID
	c.spectator = false

	c.sendJSON(WSMessage{Type: "match_state", MatchID: m.ID, Data: mustRaw(matchState(m.Snapshot()))})
}

func (h *Hub) handleJoinMatch(c *Client, msg WSMessage) {
	if c.playerName == "" {
		c.sendError("login required")
		return
	}
	m, ok := h.matches.GetMatch(msg.MatchID)
	if !ok {
		c.sendError("match not found")
		return
	}
	if err := m.AddPlayer(c.playerName); err != nil {
		c.sendError(err.Error())
		return
	}
	c.matchID = m.ID
	c.spectator = false

	h.broadcastMatchState(m)
}

func (h *Hub) handleWatchMatch(c *Client, msg WSMessage) {
	m, ok := h.matches.GetMatch(msg.MatchID)
	if !ok {
		c.sendError("match not found")
		return
	}
	m.AddWatcher(c.playerName)
	c.matchID = m.ID
	c.spectator = true

	c.sendJSON(WSMessage{Type: "match_state", MatchID: m.ID, Data: mustRaw(matchState(m.Snapshot()))})
}

func (h *Hub) handleStartMatch(c *Client) {
	m, ok := h.matches.GetMatch(c.matchID)
	if !ok {
		c.sendError("no match joined")
		return
	}
	if err := m.Start(); err != nil {
		c.sendError(err.Error())
		return
	}
	h.broadcastMatchState(m)
}

func (h *Hub) handleCommitActions(c *Client, msg WSMessage) {
	m, ok := h.matches.GetMatch(c.matchID)
	if !ok || c.spectator {
		c.sendError("no match joined")
		return
	}
	var payload commitPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.sendError("malformed actions")
		return
	}
	// The envelope's player identity wins over whatever the client put in
	// the action payloads.
	for i := range payload.Actions {
		payload.Actions[i].PlayerID = c.playerName
	}
	if err := m.CommitActions(c.playerName, payload.Actions); err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendJSON(WSMessage{Type: "actions_committed", MatchID: m.ID})
}

func (h *Hub) handleQuitMatch(c *Client) {
	m, ok := h.matches.GetMatch(c.matchID)
	if !ok {
		c.sendError("no match joined")
		return
	}
	if c.spectator {
		m.RemoveWatcher(c.playerName)
	} else if err := m.QuitPlayer(c.playerName); err != nil {
		c.sendError(err.Error())
		return
	}
	c.matchID = ""
	c.spectator = false
	c.sendJSON(WSMessage{Type: "match_left", MatchID: m.ID})
}

func (h *Hub) handleListMatches(c *Client) {
	all := h.matches.GetAllMatches()
	states := make([]matchStatePayload, 0, len(all))
	for _, m := range all {
		states = append(states, matchState(m.Snapshot()))
	}
	c.sendJSON(WSMessage{Type: "match_list", Data: mustRaw(states)})
}

// attachStream subscribes the hub to a match's resolved turns.
func (h *Hub) attachStream(m *match.Match) {
	m.OnSnapshots(func(matchID string, snapshots []game.Snapshot) {
		go h.streamTurn(matchID, snapshots)
	})
	m.OnFinish(func(result match.Result) {
		h.broadcastToMatch(result.MatchID, WSMessage{
			Type:    "match_finished",
			MatchID: result.MatchID,
			Data: mustRaw(map[string]any{
				"winner": result.Winner,
				"turns":  result.Turns,
			}),
		})
	})
}

// streamTurn plays a resolved turn's snapshot sequence out to every client
// attached to the match, fog-filtered per viewer. Sub-tick frames stream at
// animation pace; boundary frames linger.
func (h *Hub) streamTurn(matchID string, snapshots []game.Snapshot) {
	clients := h.matchClients(matchID)
	if len(clients) == 0 {
		return
	}

	for i := range snapshots {
		snap := snapshots[i]
		// One projection per distinct viewer, shared across that viewer's
		// connections.
		views := make(map[string][]byte)
		for _, c := range clients {
			viewer := c.playerName
			if c.spectator {
				viewer = ""
			}
			payload, ok := views[viewer]
			if !ok {
				filtered := game.ProjectVisibleSnapshot(h.gameCfg, viewer, snap)
				payload, _ = json.Marshal(WSMessage{
					Type:    "snapshot",
					MatchID: matchID,
					Data:    mustRaw(filtered),
				})
				views[viewer] = payload
			}
			c.enqueue(payload)
		}

		if i == len(snapshots)-1 {
			break
		}
		if snap.Type == game.SnapshotRoundSub {
			time.Sleep(h.cfg.SubFrameDelay)
		} else {
			time.Sleep(h.cfg.FrameDelay)
		}
	}
}

func (h *Hub) broadcastMatchState(m *match.Match) {
	h.broadcastToMatch(m.ID, WSMessage{
		Type:    "match_state",
		MatchID: m.ID,
		Data:    mustRaw(matchState(m.Snapshot())),
	})
}

func (h *Hub) broadcastToMatch(matchID string, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.Error(err))
		return
	}
	for _, c := range h.matchClients(matchID) {
		c.enqueue(payload)
	}
}
