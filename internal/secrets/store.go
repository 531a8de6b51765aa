package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/streamlens/streamlens/internal/domain/credential"
	"github.com/streamlens/streamlens/internal/domain/job"
)

// requiredFields mirrors what each platform API actually needs to
// authenticate. Content beyond presence is not validated here; the
// first real collector call does live validation.
var requiredFields = map[job.Platform][]string{
	job.PlatformTwitch:  {"client_id", "client_secret"},
	job.PlatformTwitter: {"bearer_token"},
	job.PlatformYouTube: {"api_key"},
	job.PlatformReddit:  {"client_id", "client_secret", "user_agent"},
}

// ScopedCredential is decrypted material valid for one collector
// invocation. Close zeroes the plaintext; callers release it on every
// exit path.
type ScopedCredential struct {
	platform job.Platform

	mu     sync.Mutex
	fields map[string]string
	closed bool
}

// Get returns a credential field, or "" after Close.
func (s *ScopedCredential) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ""
	}
	return s.fields[key]
}

func (s *ScopedCredential) Platform() job.Platform { return s.platform }

// Fingerprint identifies the credential for rate-limit bucketing and
// cache keys without exposing secret material.
func (s *ScopedCredential) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(s.fields[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Close wipes the decrypted material. Safe to call more than once.
func (s *ScopedCredential) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for k, v := range s.fields {
		b := []byte(v)
		for i := range b {
			b[i] = 0
		}
		delete(s.fields, k)
	}
	s.closed = true
}

// Store encrypts credential payloads at rest and resolves them into
// scoped capabilities on demand.
type Store struct {
	cipher *Cipher
	repo   credential.Repo
}

func NewStore(cipher *Cipher, repo credential.Repo) *Store {
	return &Store{cipher: cipher, repo: repo}
}

// Encrypt validates the payload for the platform and returns the
// sealed blob for persistence by the profile CRUD layer.
func (s *Store) Encrypt(platform job.Platform, fields map[string]string) ([]byte, error) {
	for _, f := range requiredFields[platform] {
		if strings.TrimSpace(fields[f]) == "" {
			return nil, fmt.Errorf("%w: %s", credential.ErrMissingField, f)
		}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return s.cipher.Seal(payload)
}

// Save validates, encrypts, and persists a credential payload,
// replacing any previous one in the (user, platform, profile) slot.
func (s *Store) Save(ctx context.Context, userID int64, platform job.Platform, profile string, fields map[string]string) error {
	blob, err := s.Encrypt(platform, fields)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, &credential.Credential{
		UserID:   userID,
		Platform: platform,
		Profile:  profile,
		Blob:     blob,
		Active:   true,
	})
}

// Resolve decrypts the stored blob for (user, platform, profile) into a
// capability scoped to one logical operation.
func (s *Store) Resolve(ctx context.Context, userID int64, platform job.Platform, profile string) (*ScopedCredential, error) {
	c, err := s.repo.GetActive(ctx, userID, platform, profile)
	if err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	plaintext, err := s.cipher.Open(c.Blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", credential.ErrDecryption, err)
	}

	var fields map[string]string
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", credential.ErrDecryption)
	}
	for i := range plaintext {
		plaintext[i] = 0
	}

	return &ScopedCredential{platform: platform, fields: fields}, nil
}
