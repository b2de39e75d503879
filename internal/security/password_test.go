package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

var (
	legacyParams = Argon2Params{MemoryKiB: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16}
	currentTest  = Argon2Params{MemoryKiB: 8 * 1024, Time: 2, Threads: 1, KeyLen: 32, SaltLen: 16}
)

func newTestHasher(t *testing.T, params Argon2Params, opts ...HasherOption) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(params, opts...)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func hashWith(t *testing.T, params Argon2Params, password string) string {
	t.Helper()
	artifact, err := newTestHasher(t, params).Hash(context.Background(), []byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return artifact
}

func TestHashAndVerifyPassword(t *testing.T) {
	h := newTestHasher(t, currentTest)
	ctx := context.Background()

	artifact, err := h.Hash(ctx, []byte("Stronger#Pass123"))
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(artifact, "$argon2id$v=19$m=8192,t=2,p=1$") {
		t.Fatalf("unexpected artifact prefix: %s", artifact)
	}

	outcome, err := h.Verify(ctx, artifact, []byte("Stronger#Pass123"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if outcome != OutcomeValid {
		t.Fatalf("expected valid, got %s", outcome)
	}

	outcome, err = h.Verify(ctx, artifact, []byte("wrong-pass"))
	if err != nil {
		t.Fatalf("verify wrong password errored: %v", err)
	}
	if outcome != OutcomeInvalid {
		t.Fatalf("expected invalid, got %s", outcome)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, currentTest)
	a, err := h.Hash(context.Background(), []byte("same-password"))
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := h.Hash(context.Background(), []byte("same-password"))
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct artifacts for repeated hashing")
	}
}

func TestVerifyFlagsWeakerParametersForRehash(t *testing.T) {
	h := newTestHasher(t, currentTest)
	ctx := context.Background()

	tests := []struct {
		name   string
		params Argon2Params
		want   VerificationOutcome
	}{
		{name: "lower time cost", params: legacyParams, want: OutcomeValidNeedsRehash},
		{name: "shorter key", params: Argon2Params{MemoryKiB: 8 * 1024, Time: 2, Threads: 1, KeyLen: 16, SaltLen: 16}, want: OutcomeValidNeedsRehash},
		{name: "same parameters", params: currentTest, want: OutcomeValid},
		{name: "stronger parameters", params: Argon2Params{MemoryKiB: 16 * 1024, Time: 3, Threads: 2, KeyLen: 32, SaltLen: 16}, want: OutcomeValid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			artifact := hashWith(t, tc.params, "Rotate#Me1")
			got, err := h.Verify(ctx, artifact, []byte("Rotate#Me1"))
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			needs, err := h.NeedsRehash(artifact)
			if err != nil {
				t.Fatalf("needs rehash: %v", err)
			}
			if needs != (tc.want == OutcomeValidNeedsRehash) {
				t.Fatalf("needs rehash mismatch for %s: %v", tc.name, needs)
			}
		})
	}
}

func TestVerifyWrongPasswordOnWeakArtifactIsInvalid(t *testing.T) {
	h := newTestHasher(t, currentTest)
	artifact := hashWith(t, legacyParams, "Rotate#Me1")
	got, err := h.Verify(context.Background(), artifact, []byte("not-it"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != OutcomeInvalid {
		t.Fatalf("expected invalid, got %s", got)
	}
}

func TestVerifyLegacyBcryptAlwaysNeedsRehash(t *testing.T) {
	h := newTestHasher(t, currentTest)
	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy#Pass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	got, err := h.Verify(context.Background(), string(legacy), []byte("Legacy#Pass1"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != OutcomeValidNeedsRehash {
		t.Fatalf("expected valid_needs_rehash, got %s", got)
	}

	got, err = h.Verify(context.Background(), string(legacy), []byte("wrong"))
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if got != OutcomeInvalid {
		t.Fatalf("expected invalid, got %s", got)
	}

	needs, err := h.NeedsRehash(string(legacy))
	if err != nil || !needs {
		t.Fatalf("expected bcrypt artifact to need rehash, got %v err=%v", needs, err)
	}
}

func TestVerifyMalformedArtifactsAreInvalid(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := newTestHasher(t, currentTest, WithLogger(logger))

	valid := hashWith(t, currentTest, "Stronger#Pass123")
	parts := strings.Split(valid, "$")
	join := func(p ...string) string { return strings.Join(p, "$") }

	cases := map[string]string{
		"empty":              "",
		"plaintext":          "Stronger#Pass123",
		"unknown algorithm":  join("", "scrypt", parts[2], parts[3], parts[4], parts[5]),
		"argon2i variant":    join("", "argon2i", parts[2], parts[3], parts[4], parts[5]),
		"old version":        join("", parts[1], "v=16", parts[3], parts[4], parts[5]),
		"zero memory":        join("", parts[1], parts[2], "m=0,t=2,p=1", parts[4], parts[5]),
		"huge time":          join("", parts[1], parts[2], "m=8192,t=1000,p=1", parts[4], parts[5]),
		"missing parameter":  join("", parts[1], parts[2], "m=8192,t=2", parts[4], parts[5]),
		"duplicate key":      join("", parts[1], parts[2], "m=8192,m=8192,t=2", parts[4], parts[5]),
		"bad salt encoding":  join("", parts[1], parts[2], parts[3], "!!!!", parts[5]),
		"short salt":         join("", parts[1], parts[2], parts[3], base64.RawStdEncoding.EncodeToString([]byte("abc")), parts[5]),
		"short digest":       join("", parts[1], parts[2], parts[3], parts[4], base64.RawStdEncoding.EncodeToString([]byte("tiny"))),
		"extra segment":      valid + "$extra",
		"truncated":          join("", parts[1], parts[2], parts[3]),
		"corrupt bcrypt":     "$2a$10$tooShort",
		"bcrypt bad cost":    "$2a$99$abcdefghijklmnopqrstuuabcdefghijklmnopqrstuvwxyz01234",
	}
	for name, artifact := range cases {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			got, err := h.Verify(context.Background(), artifact, []byte("Stronger#Pass123"))
			if err != nil {
				t.Fatalf("expected no error for malformed artifact, got %v", err)
			}
			if got != OutcomeInvalid {
				t.Fatalf("expected invalid, got %s", got)
			}
			if !strings.Contains(buf.String(), "stored credential is malformed") {
				t.Fatalf("expected malformed warning, got %q", buf.String())
			}
			if artifact != "" && strings.Contains(buf.String(), artifact) {
				t.Fatal("artifact leaked into log output")
			}
		})
	}
}

func TestVerifyAcceptsPaddedBase64Segments(t *testing.T) {
	h := newTestHasher(t, currentTest)
	artifact := hashWith(t, currentTest, "Padded#Pass1")
	parts := strings.Split(artifact, "$")
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		t.Fatalf("decode salt: %v", err)
	}
	parts[4] = base64.StdEncoding.EncodeToString(salt)

	got, err := h.Verify(context.Background(), strings.Join(parts, "$"), []byte("Padded#Pass1"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != OutcomeValid {
		t.Fatalf("expected valid, got %s", got)
	}
}

func TestVerifyTamperedDigestIsInvalid(t *testing.T) {
	h := newTestHasher(t, currentTest)
	artifact := hashWith(t, currentTest, "Stronger#Pass123")
	parts := strings.Split(artifact, "$")
	digest, _ := base64.RawStdEncoding.DecodeString(parts[5])
	digest[0] ^= 0xff
	parts[5] = base64.RawStdEncoding.EncodeToString(digest)

	got, err := h.Verify(context.Background(), strings.Join(parts, "$"), []byte("Stronger#Pass123"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != OutcomeInvalid {
		t.Fatalf("expected invalid, got %s", got)
	}
}

func TestNeedsRehashReportsMalformed(t *testing.T) {
	h := newTestHasher(t, currentTest)
	if _, err := h.NeedsRehash("$argon2id$v=19$m=1,t=1$x$y"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
	if _, err := h.NeedsRehash("$2a$10$short"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash for bcrypt, got %v", err)
	}
}

func TestNewPasswordHasherRejectsWeakParameters(t *testing.T) {
	weak := []Argon2Params{
		{MemoryKiB: 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16},
		{MemoryKiB: 8 * 1024, Time: 0, Threads: 1, KeyLen: 32, SaltLen: 16},
		{MemoryKiB: 8 * 1024, Time: 1, Threads: 0, KeyLen: 32, SaltLen: 16},
		{MemoryKiB: 8 * 1024, Time: 1, Threads: 1, KeyLen: 8, SaltLen: 16},
		{MemoryKiB: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 4},
	}
	for _, p := range weak {
		if _, err := NewPasswordHasher(p); !errors.Is(err, ErrInvalidHashParams) {
			t.Fatalf("expected ErrInvalidHashParams for %+v, got %v", p, err)
		}
	}
	if err := DefaultArgon2Params().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}

func TestMustPasswordHasherPanicsOnInvalidParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustPasswordHasher(Argon2Params{})
}

func TestVerifyHonorsContextWhileWaitingForSlot(t *testing.T) {
	h := newTestHasher(t, currentTest, WithMaxConcurrent(1))
	artifact := hashWith(t, currentTest, "Stronger#Pass123")

	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("hold slot: %v", err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Verify(ctx, artifact, []byte("Stronger#Pass123")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := h.Hash(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from hash, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestHashReportsRandomSourceFailure(t *testing.T) {
	h := newTestHasher(t, currentTest)
	h.rand = failingReader{}
	if _, err := h.Hash(context.Background(), []byte("x")); err == nil || !strings.Contains(err.Error(), "read salt") {
		t.Fatalf("expected salt read error, got %v", err)
	}
}

func TestConcurrentVerifyIsSafe(t *testing.T) {
	h := newTestHasher(t, currentTest, WithMaxConcurrent(2))
	artifact := hashWith(t, currentTest, "Stronger#Pass123")

	var wg sync.WaitGroup
	results := make([]VerificationOutcome, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pw := "Stronger#Pass123"
			if i%2 == 1 {
				pw = "wrong"
			}
			results[i], _ = h.Verify(context.Background(), artifact, []byte(pw))
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		want := OutcomeValid
		if i%2 == 1 {
			want = OutcomeInvalid
		}
		if got != want {
			t.Fatalf("goroutine %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestAlgorithm(t *testing.T) {
	tests := []struct{ artifact, want string }{
		{"$argon2id$v=19$m=8192,t=2,p=1$c2FsdA$ZGlnZXN0", "argon2id"},
		{"$2b$10$abcdefghijklmnopqrstuv", "bcrypt"},
		{"$2y$10$abcdefghijklmnopqrstuv", "bcrypt"},
		{"$argon2i$v=19$m=8192,t=2,p=1$c2FsdA$ZGlnZXN0", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := Algorithm(tt.artifact); got != tt.want {
			t.Fatalf("Algorithm(%q) = %q, want %q", tt.artifact, got, tt.want)
		}
	}
}
