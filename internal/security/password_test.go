package security

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *Argon2Hasher {
	return NewArgon2Hasher(Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}, 2)
}

func TestArgon2HasherDeriveAndVerify(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher()

	encoded, err := h.Derive(ctx, []byte("secret123"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if strings.Contains(encoded, "secret123") {
		t.Fatal("encoded hash must not contain the raw secret")
	}

	ok, err := h.Verify(ctx, []byte("secret123"), encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(ctx, []byte("secret124"), encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestArgon2HasherSaltsEveryDerivation(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher()
	a, err := h.Derive(ctx, []byte("same-password"))
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	b, err := h.Derive(ctx, []byte("same-password"))
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestArgon2HasherVerifiesBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := newTestHasher()
	ok, err := h.Verify(context.Background(), []byte("legacy-pass"), string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(context.Background(), []byte("wrong"), string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}
}

func TestArgon2HasherRejectsUnknownFormats(t *testing.T) {
	h := newTestHasher()
	cases := map[string]error{
		"plaintext":                              ErrUnsupportedHash,
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt": ErrMalformedHash,
		"$argon2id$v=19$garbage$c2FsdA$a2V5":     ErrMalformedHash,
	}
	for encoded, want := range cases {
		_, err := h.Verify(context.Background(), []byte("x"), encoded)
		if !errors.Is(err, want) {
			t.Fatalf("Verify(%q) err=%v want %v", encoded, err, want)
		}
	}
}

func TestArgon2HasherDeriveHonoursCancelledWait(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}, 1)
	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Derive(ctx, []byte("secret123")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled while slots are exhausted, got %v", err)
	}
}

func TestPasswordPolicyCheck(t *testing.T) {
	p := PasswordPolicy{MinLength: 6, MaxLength: 12}
	cases := []struct {
		in   string
		want error
	}{
		{in: "secret123", want: nil},
		{in: "anak3", want: ErrPasswordTooShort},
		{in: "this-is-way-too-long", want: ErrPasswordTooLong},
		{in: "        ", want: ErrPasswordBlank},
		{in: "pässwörd", want: nil},
	}
	for _, tc := range cases {
		if err := p.Check([]byte(tc.in)); !errors.Is(err, tc.want) {
			t.Fatalf("Check(%q)=%v want %v", tc.in, err, tc.want)
		}
	}
}

func TestWipeZeroesBuffer(t *testing.T) {
	b := []byte("secret123")
	Wipe(b)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d not wiped", i)
		}
	}
}
