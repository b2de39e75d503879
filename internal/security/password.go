package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/sandeepkv93/credential-auth/internal/observability"
)

// VerificationOutcome classifies a plaintext checked against a stored hash.
type VerificationOutcome int

const (
	OutcomeInvalid VerificationOutcome = iota
	OutcomeValid
	OutcomeValidNeedsRehash
)

func (o VerificationOutcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeValidNeedsRehash:
		return "valid_needs_rehash"
	default:
		return "invalid"
	}
}

const (
	algorithmArgon2id = "argon2id"
	algorithmBcrypt   = "bcrypt"
	outcomeMalformed  = "malformed"
)

// Bounds applied to parameters read from stored artifacts. They keep a
// corrupt row from forcing an unbounded allocation during verification.
const (
	maxArtifactMemoryKiB uint32 = 4 * 1024 * 1024
	maxArtifactTime      uint32 = 64
	minArtifactSaltLen          = 8
	minArtifactKeyLen           = 16
	maxArtifactKeyLen           = 128
)

var (
	ErrInvalidHashParams = errors.New("invalid password hash parameters")
	ErrMalformedHash     = errors.New("malformed password hash")
)

type Argon2Params struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB: 64 * 1024,
		Time:      3,
		Threads:   2,
		KeyLen:    32,
		SaltLen:   16,
	}
}

func (p Argon2Params) Validate() error {
	var problems []string
	if p.MemoryKiB < 8*1024 {
		problems = append(problems, "memory must be >= 8192 KiB")
	}
	if p.Time < 1 {
		problems = append(problems, "time must be >= 1")
	}
	if p.Threads < 1 {
		problems = append(problems, "threads must be >= 1")
	}
	if p.KeyLen < 16 {
		problems = append(problems, "key length must be >= 16")
	}
	if p.SaltLen < 16 {
		problems = append(problems, "salt length must be >= 16")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHashParams, strings.Join(problems, "; "))
	}
	return nil
}

// weakerThan reports whether any cost dimension of p is below want.
func (p Argon2Params) weakerThan(want Argon2Params) bool {
	return p.MemoryKiB < want.MemoryKiB ||
		p.Time < want.Time ||
		p.Threads < want.Threads ||
		p.KeyLen < want.KeyLen ||
		p.SaltLen < want.SaltLen
}

// PasswordHasher derives and verifies argon2id PHC artifacts under a fixed
// parameter set. Legacy bcrypt artifacts verify but always need a rehash.
// It holds no mutable state besides the slot semaphore and is safe for
// concurrent use.
type PasswordHasher struct {
	params Argon2Params
	slots  *semaphore.Weighted
	logger *slog.Logger
	rand   io.Reader
}

type HasherOption func(*PasswordHasher)

func WithLogger(logger *slog.Logger) HasherOption {
	return func(h *PasswordHasher) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxConcurrent bounds how many derivations run at once. Values <= 0
// keep the default of GOMAXPROCS.
func WithMaxConcurrent(n int) HasherOption {
	return func(h *PasswordHasher) {
		if n > 0 {
			h.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

func NewPasswordHasher(params Argon2Params, opts ...HasherOption) (*PasswordHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &PasswordHasher{
		params: params,
		slots:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = observability.ComponentLogger(nil, "password_hasher")
	}
	return h, nil
}

// MustPasswordHasher panics on invalid parameters. Use it only with
// compiled-in parameter sets.
func MustPasswordHasher(params Argon2Params, opts ...HasherOption) *PasswordHasher {
	h, err := NewPasswordHasher(params, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *PasswordHasher) Params() Argon2Params {
	return h.params
}

// Hash derives a new artifact with a fresh random salt. The only errors are
// a failing random source or ctx ending while waiting for a hashing slot.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext []byte) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	start := time.Now()
	digest := argon2.IDKey(plaintext, salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)
	observability.RecordPasswordHashDuration(ctx, "hash", time.Since(start))
	return encodeArgon2id(h.params, salt, digest), nil
}

// Verify checks plaintext against artifact using the parameters embedded in
// the artifact. Malformed artifacts are reported and classified as
// OutcomeInvalid; the returned error is non-nil only when ctx ends before a
// hashing slot frees up.
func (h *PasswordHasher) Verify(ctx context.Context, artifact string, plaintext []byte) (VerificationOutcome, error) {
	if isBcryptArtifact(artifact) {
		return h.verifyBcrypt(ctx, artifact, plaintext)
	}

	parsed, err := decodeArgon2id(artifact)
	if err != nil {
		h.reportMalformed(ctx, algorithmArgon2id, err)
		return OutcomeInvalid, nil
	}
	if err := h.acquire(ctx); err != nil {
		return OutcomeInvalid, err
	}
	start := time.Now()
	actual := argon2.IDKey(plaintext, parsed.salt, parsed.params.Time, parsed.params.MemoryKiB, parsed.params.Threads, parsed.params.KeyLen)
	h.slots.Release(1)
	observability.RecordPasswordHashDuration(ctx, "verify", time.Since(start))

	outcome := OutcomeValid
	switch {
	case subtle.ConstantTimeCompare(actual, parsed.digest) != 1:
		outcome = OutcomeInvalid
	case parsed.params.weakerThan(h.params):
		outcome = OutcomeValidNeedsRehash
	}
	observability.RecordPasswordVerification(ctx, algorithmArgon2id, outcome.String())
	return outcome, nil
}

// NeedsRehash reports, without any plaintext, whether artifact was produced
// under weaker parameters than the configured ones.
func (h *PasswordHasher) NeedsRehash(artifact string) (bool, error) {
	if isBcryptArtifact(artifact) {
		if _, err := bcrypt.Cost([]byte(artifact)); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	}
	parsed, err := decodeArgon2id(artifact)
	if err != nil {
		return false, err
	}
	return parsed.params.weakerThan(h.params), nil
}

func (h *PasswordHasher) verifyBcrypt(ctx context.Context, artifact string, plaintext []byte) (VerificationOutcome, error) {
	if err := h.acquire(ctx); err != nil {
		return OutcomeInvalid, err
	}
	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(artifact), plaintext)
	h.slots.Release(1)
	observability.RecordPasswordHashDuration(ctx, "verify", time.Since(start))

	switch {
	case err == nil:
		observability.RecordPasswordVerification(ctx, algorithmBcrypt, OutcomeValidNeedsRehash.String())
		return OutcomeValidNeedsRehash, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		observability.RecordPasswordVerification(ctx, algorithmBcrypt, OutcomeInvalid.String())
		return OutcomeInvalid, nil
	default:
		h.reportMalformed(ctx, algorithmBcrypt, err)
		return OutcomeInvalid, nil
	}
}

func (h *PasswordHasher) acquire(ctx context.Context) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for hashing slot: %w", err)
	}
	return nil
}

// The artifact itself is never logged, only the parse failure.
func (h *PasswordHasher) reportMalformed(ctx context.Context, algorithm string, err error) {
	observability.RecordPasswordVerification(ctx, algorithm, outcomeMalformed)
	h.logger.WarnContext(ctx, "stored credential is malformed; treating as invalid",
		"algorithm", algorithm,
		"error", err,
	)
}

// Algorithm names the scheme artifact claims to use: "argon2id", "bcrypt" or
// "unknown". It does not validate the rest of the artifact.
func Algorithm(artifact string) string {
	switch {
	case isBcryptArtifact(artifact):
		return algorithmBcrypt
	case strings.HasPrefix(artifact, "$"+algorithmArgon2id+"$"):
		return algorithmArgon2id
	default:
		return "unknown"
	}
}

func isBcryptArtifact(artifact string) bool {
	return strings.HasPrefix(artifact, "$2a$") ||
		strings.HasPrefix(artifact, "$2b$") ||
		strings.HasPrefix(artifact, "$2y$")
}

type argon2Artifact struct {
	params Argon2Params
	salt   []byte
	digest []byte
}

func encodeArgon2id(p Argon2Params, salt, digest []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmArgon2id, argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest))
}

func decodeArgon2id(encoded string) (*argon2Artifact, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: unexpected segment count", ErrMalformedHash)
	}
	if parts[1] != algorithmArgon2id {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrMalformedHash)
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedHash)
	}
	params, err := parseArgon2Params(parts[3])
	if err != nil {
		return nil, err
	}
	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < minArtifactSaltLen {
		return nil, fmt.Errorf("%w: invalid salt", ErrMalformedHash)
	}
	digest, err := decodeSegment(parts[5])
	if err != nil || len(digest) < minArtifactKeyLen || len(digest) > maxArtifactKeyLen {
		return nil, fmt.Errorf("%w: invalid digest", ErrMalformedHash)
	}
	params.SaltLen = uint32(len(salt))
	// #nosec G115 -- bounded by maxArtifactKeyLen above.
	params.KeyLen = uint32(len(digest))
	return &argon2Artifact{params: params, salt: salt, digest: digest}, nil
}

// decodeSegment accepts both raw and padded standard base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func parseArgon2Params(segment string) (Argon2Params, error) {
	var (
		p                       Argon2Params
		memSet, timeSet, parSet bool
	)
	pairs := strings.Split(segment, ",")
	if len(pairs) != 3 {
		return p, fmt.Errorf("%w: invalid parameter segment", ErrMalformedHash)
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return p, fmt.Errorf("%w: invalid parameter entry", ErrMalformedHash)
		}
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < 1 || v > uint64(maxArtifactMemoryKiB) {
				return p, fmt.Errorf("%w: invalid memory parameter", ErrMalformedHash)
			}
			p.MemoryKiB = uint32(v)
			memSet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < 1 || v > uint64(maxArtifactTime) {
				return p, fmt.Errorf("%w: invalid time parameter", ErrMalformedHash)
			}
			p.Time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < 1 {
				return p, fmt.Errorf("%w: invalid parallelism parameter", ErrMalformedHash)
			}
			p.Threads = uint8(v)
			parSet = true
		default:
			return p, fmt.Errorf("%w: unsupported parameter", ErrMalformedHash)
		}
	}
	if !memSet || !timeSet || !parSet {
		return p, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return p, nil
}
