package game

// SnapshotType tags each element of the ordered sequence returned by
// ResolveTurn. Consumers play the sequence back in order; ROUND_SUB entries
// are paced faster than the boundary types.
type SnapshotType string

const (
	SnapshotEnergy   SnapshotType = "ENERGY"
	SnapshotRoundSub SnapshotType = "ROUND_SUB"
	SnapshotRound    SnapshotType = "ROUND"
	SnapshotFinal    SnapshotType = "FINAL"
)

// Snapshot is one frame of a turn resolution. State is always a deep,
// independent copy. Projectiles and Effects are populated only for
// ROUND_SUB frames.
type Snapshot struct {
	Type        SnapshotType `json:"type"`
	Round       int          `json:"round,omitempty"`
	Tick        int          `json:"tick,omitempty"`
	State       *State       `json:"state"`
	Projectiles []Projectile `json:"projectiles,omitempty"`
	Effects     []Effect     `json:"effects,omitempty"`
}
