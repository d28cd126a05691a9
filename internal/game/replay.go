package game

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Replay is a recorded game: the full ordered snapshot sequence across all
// resolved turns, for after-the-fact playback. Playback visibility is
// derived per viewer with ProjectVisible over each frame's state.
type Replay struct {
	GameID       string
	Snapshots    []*Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay for a game.
func NewReplay(gameID string) *Replay {
	return &Replay{
		GameID:    gameID,
		Snapshots: make([]*Snapshot, 0),
	}
}

// Record appends snapshots in playback order.
func (r *Replay) Record(snapshots []Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range snapshots {
		snap := snapshots[i]
		r.Snapshots = append(r.Snapshots, &snap)
	}
}

// Start resets playback to the beginning.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the next snapshot, or nil at the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex < len(r.Snapshots) {
		snap := r.Snapshots[r.CurrentIndex]
		r.CurrentIndex++
		return snap
	}
	return nil
}

// Previous steps playback back one snapshot, or nil at the beginning.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.Snapshots[r.CurrentIndex]
	}
	return nil
}

// Skip moves playback forward (or backward) by count snapshots and returns
// the snapshot at the new position.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	newIndex := r.CurrentIndex + count
	if newIndex >= len(r.Snapshots) {
		newIndex = len(r.Snapshots) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}
	r.CurrentIndex = newIndex
	if r.CurrentIndex < len(r.Snapshots) {
		return r.Snapshots[r.CurrentIndex]
	}
	return nil
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Snapshots)
}

// SnapshotAt returns the snapshot at a specific index, or nil.
func (r *Replay) SnapshotAt(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= 0 && index < len(r.Snapshots) {
		return r.Snapshots[index]
	}
	return nil
}

// replayMetadata is the file header written ahead of the snapshot stream.
type replayMetadata struct {
	GameID        string
	Timestamp     time.Time
	Version       int
	SnapshotCount int
}

// SaveToFile writes the replay to <dir>/<gameID>.replay as a gzipped gob
// stream: metadata header followed by each snapshot in order.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.GameID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := replayMetadata{
		GameID:        r.GameID,
		Timestamp:     time.Now(),
		Version:       1,
		SnapshotCount: len(r.Snapshots),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, snap := range r.Snapshots {
		if err := encoder.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot %d: %w", i, err)
		}
	}

	return nil
}

// Encode renders the replay as a gzipped gob blob in the same layout as
// SaveToFile, for storage outside the filesystem.
func (r *Replay) Encode() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		GameID:        r.GameID,
		Timestamp:     time.Now(),
		Version:       1,
		SnapshotCount: len(r.Snapshots),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, snap := range r.Snapshots {
		if err := encoder.Encode(snap); err != nil {
			return nil, fmt.Errorf("failed to encode snapshot %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReplay reads a replay blob written by Encode.
func DecodeReplay(data []byte) (*Replay, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.GameID)
	for i := 0; i < metadata.SnapshotCount; i++ {
		var snap Snapshot
		if err := decoder.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", i, err)
		}
		replay.Snapshots = append(replay.Snapshots, &snap)
	}
	return replay, nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", gameID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.GameID)
	for i := 0; i < metadata.SnapshotCount; i++ {
		var snap Snapshot
		if err := decoder.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", i, err)
		}
		replay.Snapshots = append(replay.Snapshots, &snap)
	}

	return replay, nil
}

// ReplayRecorder manages replay recording across games.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder that saves under saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins recording a game.
func (rr *ReplayRecorder) StartRecording(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[gameID] = NewReplay(gameID)
	rr.enabled[gameID] = true

	if rr.logger != nil {
		rr.logger.Info("started replay recording", zap.String("game_id", gameID))
	}
}

// StopRecording stops recording a game without discarding it.
func (rr *ReplayRecorder) StopRecording(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.enabled[gameID] = false
}

// RecordTurn appends a resolved turn's snapshot sequence if recording is
// enabled for the game.
func (rr *ReplayRecorder) RecordTurn(gameID string, snapshots []Snapshot) {
	rr.mu.RLock()
	enabled := rr.enabled[gameID]
	replay := rr.replays[gameID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.Record(snapshots)

	if rr.logger != nil {
		rr.logger.Debug("recorded turn snapshots",
			zap.String("game_id", gameID),
			zap.Int("snapshot_count", replay.Size()),
		)
	}
}

// GetReplay returns the in-memory replay for a game.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, exists := rr.replays[gameID]
	return replay, exists
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	replay, exists := rr.replays[gameID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("game_id", gameID),
			zap.Int("snapshot_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay reads a replay from disk.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// ClearReplay drops a replay from memory without saving.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
}

// IsRecording reports whether recording is enabled for a game.
func (rr *ReplayRecorder) IsRecording(gameID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.enabled[gameID]
}
