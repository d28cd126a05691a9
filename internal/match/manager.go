package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/game"
)

// State represents the lifecycle state of a match
type State int

const (
	StateWaiting State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Participant tracks one player's commit status for the current turn.
type Participant struct {
	Name      string
	Committed bool
	Actions   []game.Action
	Quit      bool
}

// Result captures the outcome of a finished match for archival.
type Result struct {
	MatchID   string
	Name      string
	Players   []string
	Winner    string
	Turns     int
	StartedAt time.Time
	EndedAt   time.Time
}

// SnapshotHandler receives the ordered snapshot sequence of each resolved
// turn, for streaming to clients.
type SnapshotHandler func(matchID string, snapshots []game.Snapshot)

// FinishHandler fires once when a match reaches a terminal state.
type FinishHandler func(result Result)

// MatchSnapshot captures a consistent view of a match for external use.
type MatchSnapshot struct {
	ID         string
	Name       string
	State      State
	Players    []string
	Committed  map[string]bool
	Turn       int
	Winner     string
	CreateTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time
}

// Match hosts one game instance and serializes all turn resolution for it.
// Players commit their action queues independently; the turn resolves when
// every living player has committed or when the turn deadline fires, whichever
// comes first. Uncommitted players contribute an empty queue.
type Match struct {
	ID   string
	Name string

	state       State
	game        *game.Game
	players     map[string]*Participant
	playerOrder []string
	watchers    map[string]bool

	createTime time.Time
	startTime  *time.Time
	endTime    *time.Time

	turnDeadline time.Duration
	turnTimer    *time.Timer
	resolving    bool

	onSnapshots []SnapshotHandler
	onFinished  []FinishHandler

	logger *zap.Logger
	mu     sync.Mutex
}

// NewMatch creates a match in the waiting state. A turnDeadline of zero
// disables the deadline timer; the turn then resolves only on full commit.
func NewMatch(name string, cfg config.GameConfig, turnDeadline time.Duration, logger *zap.Logger) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Match{
		ID:           uuid.New().String(),
		Name:         name,
		state:        StateWaiting,
		game:         game.New(cfg, logger),
		players:      make(map[string]*Participant),
		watchers:     make(map[string]bool),
		createTime:   time.Now(),
		turnDeadline: turnDeadline,
		logger:       logger,
	}
}

// OnSnapshots subscribes a per-turn snapshot stream consumer. Handlers run
// in registration order after each resolution, outside the match lock.
func (m *Match) OnSnapshots(h SnapshotHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSnapshots = append(m.onSnapshots, h)
}

// OnFinish subscribes a terminal-state consumer.
func (m *Match) OnFinish(h FinishHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinished = append(m.onFinished, h)
}

// AddPlayer adds a player to a waiting match.
func (m *Match) AddPlayer(playerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateWaiting {
		return fmt.Errorf("match already started")
	}
	if playerName == "" {
		return fmt.Errorf("empty player name")
	}
	if _, exists := m.players[playerName]; exists {
		return fmt.Errorf("player already joined")
	}

	m.players[playerName] = &Participant{Name: playerName}
	m.playerOrder = append(m.playerOrder, playerName)
	return nil
}

// RemovePlayer removes a player from a waiting match.
func (m *Match) RemovePlayer(playerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateWaiting {
		return fmt.Errorf("match already started")
	}
	if _, exists := m.players[playerName]; !exists {
		return fmt.Errorf("player not found")
	}

	delete(m.players, playerName)
	for i, name := range m.playerOrder {
		if name == playerName {
			m.playerOrder = append(m.playerOrder[:i], m.playerOrder[i+1:]...)
			break
		}
	}
	return nil
}

// QuitPlayer marks a player as having abandoned an active match. Their queue
// is treated as committed-empty for every remaining turn.
func (m *Match) QuitPlayer(playerName string) error {
	m.mu.Lock()

	p, exists := m.players[playerName]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("player not found")
	}
	p.Quit = true
	p.Actions = nil

	resolve := m.state == StateInProgress && m.allCommittedLocked()
	m.mu.Unlock()

	if resolve {
		m.resolveTurn()
	}
	return nil
}

// AddWatcher registers a spectator.
func (m *Match) AddWatcher(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers[name] = true
}

// RemoveWatcher removes a spectator.
func (m *Match) RemoveWatcher(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.watchers[name]; exists {
		delete(m.watchers, name)
		return true
	}
	return false
}

// GetWatchers returns all spectators currently observing the match.
func (m *Match) GetWatchers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	watchers := make([]string, 0, len(m.watchers))
	for w := range m.watchers {
		watchers = append(watchers, w)
	}
	return watchers
}

// GetPlayerCount returns the number of joined players.
func (m *Match) GetPlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// GetState returns the current lifecycle state.
func (m *Match) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Game exposes the underlying engine for read-side queries (visible state,
// vision circles). Turn resolution goes through CommitActions only.
func (m *Match) Game() *game.Game {
	return m.game
}

// Start initializes the game and transitions the match into progress.
func (m *Match) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateWaiting {
		return fmt.Errorf("match already started")
	}
	if len(m.players) < 2 {
		return fmt.Errorf("not enough players")
	}

	if err := m.game.InitializeGame(m.playerOrder); err != nil {
		return fmt.Errorf("initialize game: %w", err)
	}

	now := time.Now()
	m.startTime = &now
	m.state = StateInProgress
	m.armTimerLocked()

	m.logger.Info("match started",
		zap.String("match_id", m.ID),
		zap.Strings("players", m.playerOrder),
	)
	return nil
}

// CommitActions stores a player's action queue for the current turn.
// Re-committing before resolution replaces the previous queue. When the last
// living player commits, the turn resolves synchronously on this call.
func (m *Match) CommitActions(playerName string, actions []game.Action) error {
	m.mu.Lock()

	if m.state != StateInProgress {
		m.mu.Unlock()
		return fmt.Errorf("match not in progress")
	}
	p, exists := m.players[playerName]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("player not found")
	}
	if p.Quit {
		m.mu.Unlock()
		return fmt.Errorf("player has quit")
	}
	if m.resolving {
		m.mu.Unlock()
		return fmt.Errorf("turn is resolving")
	}

	p.Committed = true
	p.Actions = actions

	resolve := m.allCommittedLocked()
	m.mu.Unlock()

	if resolve {
		m.resolveTurn()
	}
	return nil
}

// allCommittedLocked reports whether every living, non-quit player has
// committed. Dead players never block resolution.
func (m *Match) allCommittedLocked() bool {
	st := m.game.State()
	for name, p := range m.players {
		if p.Quit || p.Committed {
			continue
		}
		if pl, ok := st.Players[name]; ok && !pl.Alive {
			continue
		}
		return false
	}
	return true
}

func (m *Match) armTimerLocked() {
	if m.turnDeadline <= 0 {
		return
	}
	if m.turnTimer != nil {
		m.turnTimer.Stop()
	}
	m.turnTimer = time.AfterFunc(m.turnDeadline, m.onDeadline)
}

func (m *Match) onDeadline() {
	m.mu.Lock()
	if m.state != StateInProgress || m.resolving {
		m.mu.Unlock()
		return
	}
	m.logger.Info("turn deadline reached",
		zap.String("match_id", m.ID),
		zap.Int("turn", m.game.Turn()),
	)
	m.mu.Unlock()
	m.resolveTurn()
}

// resolveTurn drains the committed queues into the engine. Exactly one
// resolution runs at a time; late commits fail until it completes.
func (m *Match) resolveTurn() {
	m.mu.Lock()
	if m.state != StateInProgress || m.resolving {
		m.mu.Unlock()
		return
	}
	m.resolving = true
	if m.turnTimer != nil {
		m.turnTimer.Stop()
	}

	actions := make(map[string][]game.Action, len(m.players))
	for name, p := range m.players {
		if p.Committed && len(p.Actions) > 0 {
			actions[name] = p.Actions
		}
		p.Committed = false
		p.Actions = nil
	}
	onSnapshots := make([]SnapshotHandler, len(m.onSnapshots))
	copy(onSnapshots, m.onSnapshots)
	m.mu.Unlock()

	snapshots := m.game.ResolveTurn(actions)

	m.mu.Lock()
	m.resolving = false
	var finished []FinishHandler
	var result Result
	if winner := m.game.Winner(); winner != "" {
		now := time.Now()
		m.endTime = &now
		m.state = StateFinished
		finished = make([]FinishHandler, len(m.onFinished))
		copy(finished, m.onFinished)
		result = m.resultLocked(winner, now)
		m.logger.Info("match finished",
			zap.String("match_id", m.ID),
			zap.String("winner", winner),
			zap.Int("turns", result.Turns),
		)
	} else {
		m.armTimerLocked()
	}
	m.mu.Unlock()

	for _, h := range onSnapshots {
		h(m.ID, snapshots)
	}
	for _, h := range finished {
		h(result)
	}
}

func (m *Match) resultLocked(winner string, ended time.Time) Result {
	started := m.createTime
	if m.startTime != nil {
		started = *m.startTime
	}
	players := make([]string, len(m.playerOrder))
	copy(players, m.playerOrder)
	return Result{
		MatchID:   m.ID,
		Name:      m.Name,
		Players:   players,
		Winner:    winner,
		Turns:     m.game.Turn(),
		StartedAt: started,
		EndedAt:   ended,
	}
}

// Snapshot returns a consistent copy of the match state.
func (m *Match) Snapshot() MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	players := make([]string, len(m.playerOrder))
	copy(players, m.playerOrder)
	committed := make(map[string]bool, len(m.players))
	for name, p := range m.players {
		committed[name] = p.Committed
	}

	return MatchSnapshot{
		ID:         m.ID,
		Name:       m.Name,
		State:      m.state,
		Players:    players,
		Committed:  committed,
		Turn:       m.game.Turn(),
		Winner:     m.game.Winner(),
		CreateTime: m.createTime,
		StartTime:  cloneTime(m.startTime),
		EndTime:    cloneTime(m.endTime),
	}
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// Archiver persists finished matches. Implementations may archive to a
// database, the filesystem, or nowhere at all.
type Archiver interface {
	ArchiveMatch(ctx context.Context, result Result, replay *game.Replay) error
}

// Manager manages matches
type Manager struct {
	matches      map[string]*Match
	gameCfg      config.GameConfig
	turnDeadline time.Duration
	recorder     *game.ReplayRecorder
	archiver     Archiver
	logger       *zap.Logger
	mu           sync.RWMutex
}

// NewManager creates a new match manager. The recorder and archiver are
// optional; a nil recorder disables replay capture and a nil archiver
// disables persistence of finished matches.
func NewManager(gameCfg config.GameConfig, turnDeadline time.Duration, recorder *game.ReplayRecorder, archiver Archiver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		matches:      make(map[string]*Match),
		gameCfg:      gameCfg,
		turnDeadline: turnDeadline,
		recorder:     recorder,
		archiver:     archiver,
		logger:       logger,
	}
}

// CreateMatch creates a new match and wires replay capture and archival.
func (mgr *Manager) CreateMatch(name string) *Match {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	m := NewMatch(name, mgr.gameCfg, mgr.turnDeadline, mgr.logger)
	if mgr.recorder != nil {
		mgr.recorder.StartRecording(m.ID)
		m.OnSnapshots(func(matchID string, snapshots []game.Snapshot) {
			mgr.recorder.RecordTurn(matchID, snapshots)
		})
	}
	m.OnFinish(func(result Result) {
		mgr.finishMatch(m, result)
	})
	mgr.matches[m.ID] = m

	mgr.logger.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("name", name),
	)
	return m
}

func (mgr *Manager) finishMatch(m *Match, result Result) {
	var replay *game.Replay
	if mgr.recorder != nil {
		replay, _ = mgr.recorder.GetReplay(m.ID)
		if err := mgr.recorder.SaveReplay(m.ID); err != nil {
			mgr.logger.Error("failed to save replay",
				zap.String("match_id", m.ID),
				zap.Error(err),
			)
		}
	}
	if mgr.archiver != nil {
		if err := mgr.archiver.ArchiveMatch(context.Background(), result, replay); err != nil {
			mgr.logger.Error("failed to archive match",
				zap.String("match_id", m.ID),
				zap.Error(err),
			)
		}
	}
}

// GetMatch retrieves a match by ID
func (mgr *Manager) GetMatch(matchID string) (*Match, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[matchID]
	return m, ok
}

// RemoveMatch removes a match
func (mgr *Manager) RemoveMatch(matchID string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	delete(mgr.matches, matchID)
	mgr.logger.Info("match removed", zap.String("match_id", matchID))
}

// GetAllMatches returns all matches
func (mgr *Manager) GetAllMatches() []*Match {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	matches := make([]*Match, 0, len(mgr.matches))
	for _, m := range mgr.matches {
		matches = append(matches, m)
	}
	return matches
}

// GetActiveMatchCount returns the count of matches that have not finished.
func (mgr *Manager) GetActiveMatchCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	count := 0
	for _, m := range mgr.matches {
		if m.GetState() != StateFinished {
			count++
		}
	}
	return count
}
