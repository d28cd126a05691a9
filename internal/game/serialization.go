package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// StateChecksum is a deterministic fingerprint of a state snapshot, used to
// detect divergence between replayed and live resolutions.
type StateChecksum struct {
	Hash    string
	Version int
}

// ComputeChecksum generates a deterministic checksum of the state. Map
// iteration order and entity insertion order do not affect the result.
func (s *State) ComputeChecksum() (*StateChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &StateChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

// buildDeterministicRepresentation renders the state canonically: sorted
// players, sorted entities, sorted links.
func (s *State) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("GAME:%d|%s|%gx%g\n", s.Turn, s.Winner, s.Map.Width, s.Map.Height))

	playerIDs := make([]string, 0, len(s.Players))
	for id := range s.Players {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)
	for _, id := range playerIDs {
		p := s.Players[id]
		buf.WriteString(fmt.Sprintf("PLAYER:%s|%g|%s|%t\n", id, p.Energy, p.Color, p.Alive))
	}

	entityLines := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		entityLines = append(entityLines, fmt.Sprintf("ENTITY:%s|%s|%s|%g|%g|%d|%d|%d|%t|%t",
			e.ID, e.Type, e.Owner, e.X, e.Y, e.HP, e.Fuel, e.MaxFuel, e.IsStarter, e.Deployed))
	}
	sort.Strings(entityLines)
	buf.WriteString(strings.Join(entityLines, "\n"))
	buf.WriteString("\n")

	linkLines := make([]string, 0, len(s.Links))
	for _, l := range s.Links {
		linkLines = append(linkLines, fmt.Sprintf("LINK:%s|%s|%s|%g|%g|%t",
			l.FromID, l.ToID, l.Owner, l.DX, l.DY, l.HasVector))
	}
	sort.Strings(linkLines)
	buf.WriteString(strings.Join(linkLines, "\n"))
	buf.WriteString("\n")

	resourceLines := make([]string, 0, len(s.Map.Resources))
	for _, r := range s.Map.Resources {
		resourceLines = append(resourceLines, fmt.Sprintf("RESOURCE:%s|%g|%g|%g", r.ID, r.X, r.Y, r.Value))
	}
	sort.Strings(resourceLines)
	buf.WriteString(strings.Join(resourceLines, "\n"))
	buf.WriteString("\n")

	return buf.String()
}

// VerifyChecksum reports whether the state's computed checksum matches the
// expected one.
func (s *State) VerifyChecksum(expected *StateChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes a state for storage or transmission.
func (s *State) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeState decodes a state produced by SerializeToBytes.
func DeserializeState(data []byte) (*State, error) {
	var st State
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &st, nil
}

// ValidateSerializationRoundtrip confirms a state survives a
// serialize/deserialize cycle without data loss by comparing checksums.
func ValidateSerializationRoundtrip(st *State) error {
	original, err := st.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := st.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeState(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute roundtrip checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, roundtrip=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
