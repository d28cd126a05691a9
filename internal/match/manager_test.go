package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/torusfall/torusfall-server/internal/config"
	"github.com/torusfall/torusfall-server/internal/game"
)

func newStartedMatch(t *testing.T) *Match {
	t.Helper()
	m := NewMatch("test", config.DefaultGame(), 0, zaptest.NewLogger(t))
	require.NoError(t, m.AddPlayer("player1"))
	require.NoError(t, m.AddPlayer("player2"))
	require.NoError(t, m.Start())
	return m
}

func TestMatch_Lifecycle(t *testing.T) {
	m := NewMatch("test", config.DefaultGame(), 0, zaptest.NewLogger(t))
	assert.Equal(t, StateWaiting, m.GetState())
	assert.Equal(t, "WAITING", m.GetState().String())

	require.Error(t, m.Start(), "cannot start with no players")
	require.NoError(t, m.AddPlayer("player1"))
	require.Error(t, m.Start(), "cannot start with one player")
	require.NoError(t, m.AddPlayer("player2"))
	require.Error(t, m.AddPlayer("player2"), "duplicate join rejected")
	require.NoError(t, m.Start())

	assert.Equal(t, StateInProgress, m.GetState())
	assert.Error(t, m.Start(), "double start rejected")
	assert.Error(t, m.AddPlayer("player3"), "no joins after start")
	assert.Error(t, m.RemovePlayer("player1"), "no leaves after start")
}

func TestMatch_RemovePlayerWhileWaiting(t *testing.T) {
	m := NewMatch("test", config.DefaultGame(), 0, zaptest.NewLogger(t))
	require.NoError(t, m.AddPlayer("player1"))
	require.NoError(t, m.AddPlayer("player2"))
	require.NoError(t, m.RemovePlayer("player2"))
	assert.Equal(t, 1, m.GetPlayerCount())
	assert.Error(t, m.RemovePlayer("player2"))
}

func TestMatch_ResolvesWhenAllCommitted(t *testing.T) {
	m := newStartedMatch(t)

	var streamed [][]game.Snapshot
	m.OnSnapshots(func(_ string, snapshots []game.Snapshot) {
		streamed = append(streamed, snapshots)
	})

	require.NoError(t, m.CommitActions("player1", nil))
	assert.Equal(t, 1, m.Game().Turn(), "turn waits for the second commit")
	assert.Empty(t, streamed)

	require.NoError(t, m.CommitActions("player2", nil))
	assert.Equal(t, 2, m.Game().Turn())
	require.Len(t, streamed, 1)
	assert.Equal(t, game.SnapshotEnergy, streamed[0][0].Type)
	assert.Equal(t, game.SnapshotFinal, streamed[0][len(streamed[0])-1].Type)
}

func TestMatch_CommitValidation(t *testing.T) {
	m := NewMatch("test", config.DefaultGame(), 0, zaptest.NewLogger(t))
	require.NoError(t, m.AddPlayer("player1"))
	require.NoError(t, m.AddPlayer("player2"))

	assert.Error(t, m.CommitActions("player1", nil), "no commits before start")

	require.NoError(t, m.Start())
	assert.Error(t, m.CommitActions("stranger", nil))

	require.NoError(t, m.QuitPlayer("player1"))
	assert.Error(t, m.CommitActions("player1", nil), "quit players cannot commit")
}

func TestMatch_QuitUnblocksResolution(t *testing.T) {
	m := newStartedMatch(t)

	require.NoError(t, m.CommitActions("player1", nil))
	require.NoError(t, m.QuitPlayer("player2"))

	assert.Equal(t, 2, m.Game().Turn(), "quit counts as committed-empty")
}

func TestMatch_DeadlineSubstitutesEmptyQueues(t *testing.T) {
	m := NewMatch("test", config.DefaultGame(), 25*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, m.AddPlayer("player1"))
	require.NoError(t, m.AddPlayer("player2"))

	resolved := make(chan struct{}, 4)
	m.OnSnapshots(func(string, []game.Snapshot) {
		resolved <- struct{}{}
	})
	require.NoError(t, m.Start())
	require.NoError(t, m.CommitActions("player1", nil))

	select {
	case <-resolved:
	case <-time.After(2 * time.Second):
		t.Fatal("deadline never fired")
	}
	assert.Equal(t, 2, m.Game().Turn())
}

func TestMatch_FinishesOnWinner(t *testing.T) {
	m := newStartedMatch(t)

	var result Result
	done := make(chan struct{})
	m.OnFinish(func(r Result) {
		result = r
		close(done)
	})

	// player1 snipes player2's starter hub with an exact-distance weapon.
	st := m.Game().State()
	var hub1 *game.Entity
	for _, e := range st.Entities {
		if e.Owner == "player1" && e.IsStarter {
			hub1 = e
		}
	}
	require.NotNil(t, hub1)

	action := game.Action{
		PlayerID: "player1",
		SourceID: hub1.ID,
		Item:     game.EntityWeapon,
		AngleDeg: 0,
		Pull:     m.Game().PullForDistance(500),
	}
	require.NoError(t, m.CommitActions("player1", []game.Action{action}))
	require.NoError(t, m.CommitActions("player2", nil))

	<-done
	assert.Equal(t, StateFinished, m.GetState())
	assert.Equal(t, "player1", result.Winner)
	assert.Equal(t, []string{"player1", "player2"}, result.Players)
	assert.Error(t, m.CommitActions("player1", nil), "no commits after finish")
}

func TestMatch_Watchers(t *testing.T) {
	m := newStartedMatch(t)

	m.AddWatcher("observer")
	assert.Equal(t, []string{"observer"}, m.GetWatchers())
	assert.True(t, m.RemoveWatcher("observer"))
	assert.False(t, m.RemoveWatcher("observer"))
}

type fakeArchiver struct {
	results []Result
	replays []*game.Replay
}

func (a *fakeArchiver) ArchiveMatch(_ context.Context, result Result, replay *game.Replay) error {
	a.results = append(a.results, result)
	a.replays = append(a.replays, replay)
	return nil
}

func TestManager_CreateAndTrackMatches(t *testing.T) {
	mgr := NewManager(config.DefaultGame(), 0, nil, nil, zaptest.NewLogger(t))

	m := mgr.CreateMatch("ranked")
	got, ok := mgr.GetMatch(m.ID)
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, mgr.GetActiveMatchCount())

	mgr.RemoveMatch(m.ID)
	_, ok = mgr.GetMatch(m.ID)
	assert.False(t, ok)
	assert.Empty(t, mgr.GetAllMatches())
}

func TestManager_RecordsAndArchivesFinishedMatch(t *testing.T) {
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	archiver := &fakeArchiver{}
	mgr := NewManager(config.DefaultGame(), 0, recorder, archiver, zaptest.NewLogger(t))

	m := mgr.CreateMatch("ranked")
	require.NoError(t, m.AddPlayer("player1"))
	require.NoError(t, m.AddPlayer("player2"))
	require.NoError(t, m.Start())

	st := m.Game().State()
	var hub1 *game.Entity
	for _, e := range st.Entities {
		if e.Owner == "player1" && e.IsStarter {
			hub1 = e
		}
	}
	require.NotNil(t, hub1)

	action := game.Action{
		PlayerID: "player1",
		SourceID: hub1.ID,
		Item:     game.EntityWeapon,
		AngleDeg: 0,
		Pull:     m.Game().PullForDistance(500),
	}
	require.NoError(t, m.CommitActions("player1", []game.Action{action}))
	require.NoError(t, m.CommitActions("player2", nil))

	require.Len(t, archiver.results, 1)
	assert.Equal(t, "player1", archiver.results[0].Winner)
	require.NotNil(t, archiver.replays[0])
	assert.Greater(t, archiver.replays[0].Size(), 0, "replay carries the recorded turn")

	loaded, err := recorder.LoadReplay(m.ID)
	require.NoError(t, err)
	assert.Equal(t, archiver.replays[0].Size(), loaded.Size())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "WAITING", StateWaiting.String())
	assert.Equal(t, "IN_PROGRESS", StateInProgress.String())
	assert.Equal(t, "FINISHED", StateFinished.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
