// Package credential stores per-user password credentials for the
// storage-interface half of spec §6's SASL discussion: SASL mechanism
// negotiation itself is out of scope, but a user still needs somewhere
// to keep a verifiable password hash. Hashing follows the teacher's
// security/bcrypt.go and auth/password.go: bcrypt with a configurable
// cost, username/password shape validation before a hash is ever
// computed.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"zipperdb.dev/store"
)

// Sentinel errors, matching the taxonomy style of store/codec/zipper.
var (
	ErrEmptyPassword    = errors.New("credential: password cannot be empty")
	ErrPasswordTooShort = errors.New("credential: password is too short")
	ErrInvalidUsername  = errors.New("credential: invalid username format")
	ErrWeakPassword     = errors.New("credential: password does not meet strength requirements")
	ErrUserNotFound     = errors.New("credential: user not found")
)

// DefaultCost is the bcrypt cost Hash uses when it is given a cost of
// zero or less (config.CredentialConfig.BcryptCost defaults to the same
// value).
const DefaultCost = 10

// MinPasswordLength is the shortest password CheckStrength accepts.
const MinPasswordLength = 8

// Credential is one user's stored authentication material: a bcrypt hash,
// never the plaintext password.
type Credential struct {
	Username string
	Hash     string
}

// Store is the credential-storage interface spec §6 calls out: a place
// to Get, Put, and Delete per-user Credentials. Mechanism negotiation
// (SASL's PLAIN/SCRAM exchange) is built on top of this by callers this
// package does not define.
type Store interface {
	Get(ctx context.Context, username string) (Credential, error)
	Put(ctx context.Context, cred Credential) error
	Delete(ctx context.Context, username string) error
}

// backingStore implements Store over any store.BackingStore, one JSON
// record per user keyed by username.
type backingStore struct {
	backing store.BackingStore
}

// NewStore wraps backing as a credential Store. backing is used
// unprefixed; callers that share one BackingStore across subsystems
// should pass a store.NewPrefixed wrapper instead.
func NewStore(backing store.BackingStore) Store {
	return &backingStore{backing: backing}
}

func (s *backingStore) Get(ctx context.Context, username string) (Credential, error) {
	raw, err := s.backing.Get(ctx, []byte(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Credential{}, fmt.Errorf("credential: %s: %w", username, ErrUserNotFound)
		}
		return Credential{}, fmt.Errorf("credential: get %s: %w", username, err)
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, fmt.Errorf("credential: decode %s: %w", username, err)
	}
	return cred, nil
}

func (s *backingStore) Put(ctx context.Context, cred Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential: encode %s: %w", cred.Username, err)
	}
	if err := s.backing.Set(ctx, []byte(cred.Username), raw); err != nil {
		return fmt.Errorf("credential: put %s: %w", cred.Username, err)
	}
	return nil
}

func (s *backingStore) Delete(ctx context.Context, username string) error {
	if err := s.backing.Delete(ctx, []byte(username)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("credential: %s: %w", username, ErrUserNotFound)
		}
		return fmt.Errorf("credential: delete %s: %w", username, err)
	}
	return nil
}

// Hash hashes password with bcrypt at the given cost. An empty password
// is rejected before bcrypt ever runs.
func Hash(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost <= 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func Verify(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// NeedsRehash reports whether hash was generated at a cost other than
// cost, so a caller can transparently upgrade it after a successful
// Verify.
func NeedsRehash(hash string, cost int) (bool, error) {
	actual, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("credential: cost: %w", err)
	}
	return actual != cost, nil
}

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// ValidateUsername checks username against the 3-50 character,
// alphanumeric/underscore/hyphen format every credential Store expects.
func ValidateUsername(username string) error {
	if !validUsername.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// CheckStrength validates password length, and when requireStrong is
// set, requires at least one uppercase letter, one lowercase letter, one
// digit, and one special character.
func CheckStrength(password string, requireStrong bool) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !requireStrong {
		return nil
	}

	var (
		hasUpper   = regexp.MustCompile(`[A-Z]`).MatchString(password)
		hasLower   = regexp.MustCompile(`[a-z]`).MatchString(password)
		hasNumber  = regexp.MustCompile(`[0-9]`).MatchString(password)
		hasSpecial = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`).MatchString(password)
	)
	if !hasUpper || !hasLower || !hasNumber || !hasSpecial {
		return ErrWeakPassword
	}
	return nil
}
