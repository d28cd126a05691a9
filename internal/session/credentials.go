package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore holds bcrypt-hashed player credentials in memory.
type CredentialStore struct {
	hashes map[string][]byte
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore(logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialStore{
		hashes: make(map[string][]byte),
		logger: logger,
	}
}

// Register stores a hashed credential for a new player name.
func (cs *CredentialStore) Register(playerName, password string) error {
	if playerName == "" {
		return fmt.Errorf("empty player name")
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.hashes[playerName]; exists {
		return fmt.Errorf("player name already registered")
	}
	cs.hashes[playerName] = hash

	cs.logger.Info("player registered", zap.String("player", playerName))
	return nil
}

// Authenticate verifies a credential against the stored hash.
func (cs *CredentialStore) Authenticate(playerName, password string) error {
	cs.mu.RLock()
	hash, exists := cs.hashes[playerName]
	cs.mu.RUnlock()

	if !exists {
		return fmt.Errorf("unknown player")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

// Registered reports whether a player name has a stored credential.
func (cs *CredentialStore) Registered(playerName string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, exists := cs.hashes[playerName]
	return exists
}
