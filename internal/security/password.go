package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPasswordTooShort    = errors.New("password too short")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrPasswordBlank       = errors.New("password must contain non-whitespace characters")
	ErrUnsupportedHash     = errors.New("unsupported password hash format")
	ErrMalformedHash       = errors.New("malformed password hash")
	errIncompatibleVersion = errors.New("incompatible argon2 version")
)

// PasswordHasher derives and checks one-way password verifiers.
type PasswordHasher interface {
	Derive(ctx context.Context, secret []byte) (string, error)
	Verify(ctx context.Context, secret []byte, encoded string) (bool, error)
}

type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{MemoryKiB: 64 * 1024, Iterations: 1, Parallelism: 4, SaltLength: 16, KeyLength: 32}
}

// Argon2Hasher produces argon2id PHC strings and also verifies bcrypt hashes
// carried over from older stores. Work is bounded by a weighted semaphore so
// derivations cannot monopolise every CPU.
type Argon2Hasher struct {
	params Argon2Params
	slots  *semaphore.Weighted
}

func NewArgon2Hasher(params Argon2Params, concurrency int) *Argon2Hasher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if params.SaltLength == 0 {
		params.SaltLength = 16
	}
	if params.KeyLength == 0 {
		params.KeyLength = 32
	}
	return &Argon2Hasher{params: params, slots: semaphore.NewWeighted(int64(concurrency))}
}

// Derive returns "$argon2id$v=19$m=...,t=...,p=...$salt$key". The context only
// bounds the wait for a hashing slot; a started derivation always completes.
func (h *Argon2Hasher) Derive(ctx context.Context, secret []byte) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey(secret, salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)
	h.slots.Release(1)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(ctx context.Context, secret []byte, encoded string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(secret, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), secret)
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

func verifyArgon2id(secret []byte, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrMalformedHash
	}
	if version != argon2.Version {
		return false, errIncompatibleVersion
	}
	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return false, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}
	got := argon2.IDKey(secret, salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// Check counts runes, not bytes, so multi-byte passwords are not penalised.
func (p PasswordPolicy) Check(secret []byte) error {
	n := len([]rune(string(secret)))
	if n < p.MinLength {
		return ErrPasswordTooShort
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return ErrPasswordTooLong
	}
	if strings.IndexFunc(string(secret), func(r rune) bool { return !unicode.IsSpace(r) }) < 0 {
		return ErrPasswordBlank
	}
	return nil
}

// Wipe zeroes a secret buffer once it is no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
