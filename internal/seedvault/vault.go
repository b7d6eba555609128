// Package seedvault keeps the active server seed out of the database.
// Seeds live in the OS keychain, with a JSON file fallback for hosts that
// have no keyring service.
package seedvault

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

const (
	defaultService = "casino-settle"
	keyServerSeed  = "server_seed"
	seedBytes      = 32
)

// ErrNoFallback is returned when the keyring is unavailable and no fallback
// file was configured.
var ErrNoFallback = errors.New("seedvault: keyring unavailable and no fallback path configured")

// Vault stores one server seed per casino id.
type Vault struct {
	service      string
	fallbackPath string
	logger       *slog.Logger
	mu           sync.Mutex
}

// Rotation reveals the retired server seed alongside the new commitment.
type Rotation struct {
	PreviousSeed  string `json:"previous_server_seed"`
	PreviousHash  string `json:"previous_server_seed_hash"`
	PreviousNonce uint64 `json:"previous_nonce"`
	NextHash      string `json:"server_seed_hash"`
	ClientSeed    string `json:"client_seed"`
}

// New creates a vault. An empty service name uses the default.
func New(serviceName, fallbackPath string, logger *slog.Logger) *Vault {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultService
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		service:      serviceName,
		fallbackPath: fallbackPath,
		logger:       logger.With("component", "seedvault"),
	}
}

func (v *Vault) key(casinoID string) string {
	return fmt.Sprintf("%s/%s", casinoID, keyServerSeed)
}

// ServerSeed returns the stored seed for casinoID, generating and storing
// a fresh one on first use.
func (v *Vault) ServerSeed(casinoID string) (string, error) {
	casinoID = strings.TrimSpace(casinoID)
	if casinoID == "" {
		return "", fmt.Errorf("seedvault: casino id is required")
	}

	seed, err := v.get(casinoID)
	if err == nil && seed != "" {
		return seed, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", err
	}

	seed, err = NewServerSeed()
	if err != nil {
		return "", err
	}
	if err := v.set(casinoID, seed); err != nil {
		return "", err
	}
	v.logger.Info("generated server seed", "casino_id", casinoID, "server_seed_hash", engine.HashServerSeed(seed))
	return seed, nil
}

// Source opens a seeded source for casinoID, continuing from nonce.
func (v *Vault) Source(casinoID, clientSeed string, nonce uint64) (*engine.SeededSource, error) {
	seed, err := v.ServerSeed(casinoID)
	if err != nil {
		return nil, err
	}
	return engine.NewSeededSource(engine.Seeds{Server: seed, Client: clientSeed}, nonce), nil
}

// Rotate stores a fresh server seed, reseeds src and reveals the old seed.
// An empty clientSeed keeps the current one.
func (v *Vault) Rotate(casinoID string, src *engine.SeededSource, clientSeed string) (Rotation, error) {
	casinoID = strings.TrimSpace(casinoID)
	if casinoID == "" {
		return Rotation{}, fmt.Errorf("seedvault: casino id is required")
	}
	if clientSeed == "" {
		clientSeed = src.ClientSeed()
	}

	next, err := NewServerSeed()
	if err != nil {
		return Rotation{}, err
	}
	if err := v.set(casinoID, next); err != nil {
		return Rotation{}, err
	}

	nonce := src.Nonce()
	prev := src.Reseed(engine.Seeds{Server: next, Client: clientSeed})
	rot := Rotation{
		PreviousSeed:  prev.Server,
		PreviousHash:  engine.HashServerSeed(prev.Server),
		PreviousNonce: nonce,
		NextHash:      engine.HashServerSeed(next),
		ClientSeed:    clientSeed,
	}
	v.logger.Info("rotated server seed",
		"casino_id", casinoID,
		"previous_hash", rot.PreviousHash,
		"server_seed_hash", rot.NextHash)
	return rot, nil
}

// Delete removes the stored seed from the keyring and the fallback file.
func (v *Vault) Delete(casinoID string) error {
	err := keyring.Delete(v.service, v.key(casinoID))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		_ = v.deleteFallback(casinoID)
		return fmt.Errorf("seedvault: keyring delete: %w", err)
	}
	return v.deleteFallback(casinoID)
}

// NewServerSeed returns 32 random bytes, hex encoded.
func NewServerSeed() (string, error) {
	var buf [seedBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("seedvault: generate seed: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

func (v *Vault) set(casinoID, seed string) error {
	err := keyring.Set(v.service, v.key(casinoID), seed)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("seedvault: keyring set: %w", err)
	}
	v.logger.Warn("keyring unavailable, using fallback file", "error", err)
	return v.setFallback(casinoID, seed)
}

func (v *Vault) get(casinoID string) (string, error) {
	val, err := keyring.Get(v.service, v.key(casinoID))
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("seedvault: keyring get: %w", err)
	}

	fallback, ferr := v.getFallback(casinoID)
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, keyring.ErrNotFound) {
		return "", keyring.ErrNotFound
	}
	return "", ferr
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSeeds map[string]string

func (v *Vault) setFallback(casinoID, seed string) error {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return ErrNoFallback
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[casinoID] = seed
	return v.writeFallbackUnlocked(data)
}

func (v *Vault) getFallback(casinoID string) (string, error) {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return "", ErrNoFallback
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	seed, ok := data[casinoID]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return seed, nil
}

func (v *Vault) deleteFallback(casinoID string) error {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[casinoID]; !ok {
		return nil
	}
	delete(data, casinoID)
	return v.writeFallbackUnlocked(data)
}

func (v *Vault) readFallbackUnlocked() (fallbackSeeds, error) {
	out := fallbackSeeds{}
	raw, err := os.ReadFile(v.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("seedvault: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("seedvault: decode fallback: %w", err)
	}
	return out, nil
}

func (v *Vault) writeFallbackUnlocked(data fallbackSeeds) error {
	if err := os.MkdirAll(filepath.Dir(v.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("seedvault: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("seedvault: encode fallback: %w", err)
	}
	if err := os.WriteFile(v.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("seedvault: write fallback: %w", err)
	}
	return nil
}
