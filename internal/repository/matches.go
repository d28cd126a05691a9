package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torusfall/torusfall-server/internal/game"
	"github.com/torusfall/torusfall-server/internal/match"
)

const matchesSchema = `
CREATE TABLE IF NOT EXISTS matches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	players    TEXT[] NOT NULL,
	winner     TEXT NOT NULL,
	turns      INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL,
	replay     BYTEA
)`

// MatchRecord is an archived match row.
type MatchRecord struct {
	ID        string
	Name      string
	Players   []string
	Winner    string
	Turns     int
	StartedAt time.Time
	EndedAt   time.Time
}

// MatchRepository archives finished matches and their replay blobs.
type MatchRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMatchRepository creates a match repository.
func NewMatchRepository(db *DB, logger *zap.Logger) *MatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchRepository{db: db, logger: logger}
}

// EnsureSchema creates the matches table if it does not exist.
func (r *MatchRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, matchesSchema); err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// ArchiveMatch persists a finished match. A nil replay archives the result
// row with no blob.
func (r *MatchRepository) ArchiveMatch(ctx context.Context, result match.Result, replay *game.Replay) error {
	var blob []byte
	if replay != nil {
		var err error
		blob, err = replay.Encode()
		if err != nil {
			return fmt.Errorf("failed to encode replay: %w", err)
		}
	}

	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO matches (id, name, players, winner, turns, started_at, ended_at, replay)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		result.MatchID, result.Name, result.Players, result.Winner,
		result.Turns, result.StartedAt, result.EndedAt, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to archive match: %w", err)
	}

	r.logger.Info("archived match",
		zap.String("match_id", result.MatchID),
		zap.String("winner", result.Winner),
		zap.Int("turns", result.Turns),
		zap.Int("replay_bytes", len(blob)),
	)
	return nil
}

// GetMatch loads an archived match row.
func (r *MatchRepository) GetMatch(ctx context.Context, matchID string) (*MatchRecord, error) {
	var rec MatchRecord
	err := r.db.Pool().QueryRow(ctx,
		`SELECT id, name, players, winner, turns, started_at, ended_at
		 FROM matches WHERE id = $1`, matchID,
	).Scan(&rec.ID, &rec.Name, &rec.Players, &rec.Winner, &rec.Turns, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	return &rec, nil
}

// ListRecent returns the most recently finished matches.
func (r *MatchRepository) ListRecent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, name, players, winner, turns, started_at, ended_at
		 FROM matches ORDER BY ended_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	records := make([]*MatchRecord, 0, limit)
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Players, &rec.Winner,
			&rec.Turns, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match rows: %w", err)
	}
	return records, nil
}

// LoadReplay loads and decodes an archived replay blob.
func (r *MatchRepository) LoadReplay(ctx context.Context, matchID string) (*game.Replay, error) {
	var blob []byte
	err := r.db.Pool().QueryRow(ctx,
		`SELECT replay FROM matches WHERE id = $1`, matchID,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay for match %s: %w", matchID, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("no replay archived for match %s", matchID)
	}
	return game.DecodeReplay(blob)
}
