package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const secretPrefix = "gw_live_"

// Credential is a long-lived static API key bound to a tier. Revoked
// credentials are tombstoned (Active=false), never deleted, so historic
// IDs stay resolvable for audit.
type Credential struct {
	ID        string    `json:"id"`
	Secret    string    `json:"secret"`
	Name      string    `json:"name"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// CredentialStore holds credentials under two consistent indexes: by ID
// for management operations and by secret for O(1) authentication.
type CredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]*Credential
	bySecret map[string]*Credential
	order    []string
}

// NewCredentialStore builds a store seeded with the given credentials.
func NewCredentialStore(seed ...Credential) *CredentialStore {
	s := &CredentialStore{
		byID:     make(map[string]*Credential),
		bySecret: make(map[string]*Credential),
	}
	for _, c := range seed {
		cred := c
		s.byID[cred.ID] = &cred
		s.bySecret[cred.Secret] = &cred
		s.order = append(s.order, cred.ID)
	}
	return s
}

// Create mints a credential named name on the given tier (default "free").
// IDs are sequential ("key_001", ...) and secrets are "gw_live_" plus 32
// lowercase hex characters.
func (s *CredentialStore) Create(name, tier string) (Credential, error) {
	if name == "" {
		return Credential{}, fmt.Errorf("auth: name is required")
	}
	if tier == "" {
		tier = "free"
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return Credential{}, fmt.Errorf("auth: generating secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred := &Credential{
		ID:        fmt.Sprintf("key_%03d", len(s.order)+1),
		Secret:    secretPrefix + hex.EncodeToString(buf),
		Name:      name,
		Tier:      tier,
		CreatedAt: time.Now(),
		Active:    true,
	}
	s.byID[cred.ID] = cred
	s.bySecret[cred.Secret] = cred
	s.order = append(s.order, cred.ID)
	return *cred, nil
}

// Revoke tombstones the credential with the given ID. It reports whether
// the ID was known. Both indexes stay consistent: the secret entry
// remains but authenticates nothing once Active is false.
func (s *CredentialStore) Revoke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[id]
	if !ok {
		return false
	}
	cred.Active = false
	return true
}

// BySecret returns the active credential with the given secret.
func (s *CredentialStore) BySecret(secret string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.bySecret[secret]
	if !ok || !cred.Active {
		return Credential{}, false
	}
	return *cred, true
}

// ByID returns the credential with the given ID, active or not.
func (s *CredentialStore) ByID(id string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[id]
	if !ok {
		return Credential{}, false
	}
	return *cred, true
}

// ActiveCount returns the number of credentials that can authenticate.
func (s *CredentialStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, cred := range s.byID {
		if cred.Active {
			n++
		}
	}
	return n
}

// List returns all credentials in creation order.
func (s *CredentialStore) List() []Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Credential, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}
