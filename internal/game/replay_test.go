package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func recordedGame(t *testing.T) (*testHarness, []Snapshot) {
	t.Helper()
	h := newTestHarness(t)
	hub1 := h.starterHub("player1")
	snapshots := h.game.ResolveTurn(map[string][]Action{
		"player1": {h.launchAt("player1", hub1, EntityExtractor, 400, 500)},
	})
	return h, snapshots
}

func TestReplay_RecordAndNavigate(t *testing.T) {
	_, snapshots := recordedGame(t)

	replay := NewReplay("game-1")
	replay.Record(snapshots)
	require.Equal(t, len(snapshots), replay.Size())

	replay.Start()
	first := replay.Next()
	require.NotNil(t, first)
	assert.Equal(t, SnapshotEnergy, first.Type)

	// Walk to the end.
	count := 1
	for replay.Next() != nil {
		count++
	}
	assert.Equal(t, len(snapshots), count)
	assert.Nil(t, replay.Next(), "past the end")

	prev := replay.Previous()
	require.NotNil(t, prev)
	assert.Equal(t, SnapshotFinal, prev.Type)
}

func TestReplay_Skip(t *testing.T) {
	_, snapshots := recordedGame(t)

	replay := NewReplay("game-2")
	replay.Record(snapshots)
	replay.Start()

	snap := replay.Skip(2)
	require.NotNil(t, snap)
	assert.Equal(t, snapshots[2].Type, snap.Type)

	snap = replay.Skip(-100)
	require.NotNil(t, snap)
	assert.Equal(t, snapshots[0].Type, snap.Type)

	snap = replay.Skip(10000)
	require.NotNil(t, snap)
	assert.Equal(t, SnapshotFinal, snap.Type, "skip clamps to the last snapshot")
}

func TestReplay_SaveLoadRoundtrip(t *testing.T) {
	_, snapshots := recordedGame(t)
	dir := t.TempDir()

	replay := NewReplay("game-3")
	replay.Record(snapshots)
	require.NoError(t, replay.SaveToFile(dir))

	loaded, err := LoadReplayFromFile(dir, "game-3")
	require.NoError(t, err)
	require.Equal(t, replay.Size(), loaded.Size())

	// Frame-by-frame state equality via checksums.
	for i := 0; i < replay.Size(); i++ {
		want, err := replay.SnapshotAt(i).State.ComputeChecksum()
		require.NoError(t, err)
		got, err := loaded.SnapshotAt(i).State.ComputeChecksum()
		require.NoError(t, err)
		assert.Equal(t, want.Hash, got.Hash, "frame %d", i)
	}
}

func TestReplay_EncodeDecodeRoundtrip(t *testing.T) {
	_, snapshots := recordedGame(t)

	replay := NewReplay("game-blob")
	replay.Record(snapshots)

	blob, err := replay.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	decoded, err := DecodeReplay(blob)
	require.NoError(t, err)
	assert.Equal(t, "game-blob", decoded.GameID)
	require.Equal(t, replay.Size(), decoded.Size())

	_, err = DecodeReplay([]byte("not a replay"))
	assert.Error(t, err)
}

func TestReplayRecorder_Lifecycle(t *testing.T) {
	_, snapshots := recordedGame(t)
	dir := t.TempDir()
	recorder := NewReplayRecorder(zaptest.NewLogger(t), dir)

	recorder.StartRecording("game-4")
	assert.True(t, recorder.IsRecording("game-4"))

	recorder.RecordTurn("game-4", snapshots)
	replay, ok := recorder.GetReplay("game-4")
	require.True(t, ok)
	assert.Equal(t, len(snapshots), replay.Size())

	require.NoError(t, recorder.SaveReplay("game-4"))
	_, ok = recorder.GetReplay("game-4")
	assert.False(t, ok, "saved replay dropped from memory")

	loaded, err := recorder.LoadReplay("game-4")
	require.NoError(t, err)
	assert.Equal(t, len(snapshots), loaded.Size())
}

func TestReplayRecorder_DisabledGameIgnored(t *testing.T) {
	_, snapshots := recordedGame(t)
	recorder := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())

	recorder.RecordTurn("never-started", snapshots)
	_, ok := recorder.GetReplay("never-started")
	assert.False(t, ok)

	recorder.StartRecording("game-5")
	recorder.StopRecording("game-5")
	recorder.RecordTurn("game-5", snapshots)
	replay, ok := recorder.GetReplay("game-5")
	require.True(t, ok)
	assert.Zero(t, replay.Size(), "stopped recorder drops frames")
}

func TestReplay_FogFilterPerFrame(t *testing.T) {
	h, snapshots := recordedGame(t)

	replay := NewReplay("game-6")
	replay.Record(snapshots)
	replay.Start()

	for snap := replay.Next(); snap != nil; snap = replay.Next() {
		view := ProjectVisible(h.game.cfg, "player2", snap.State)
		for _, e := range view.Entities {
			if e.Owner == "player2" {
				assert.True(t, e.Scouted)
			}
		}
	}
}
