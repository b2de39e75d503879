package credentials

import (
	"context"
	"errors"
	"slices"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sandeepkv93/credential-auth/internal/security"
)

type storedCredential struct {
	userID   uint
	artifact string
}

type sliceScanner struct {
	rows []storedCredential
	err  error
}

func (s sliceScanner) ScanPasswordHashes(ctx context.Context, batchSize int, fn func(uint, string) error) error {
	for _, row := range s.rows {
		if err := fn(row.userID, row.artifact); err != nil {
			return err
		}
	}
	return s.err
}

func testParams(time uint32) security.Argon2Params {
	return security.Argon2Params{MemoryKiB: 8192, Time: time, Threads: 1, KeyLen: 32, SaltLen: 16}
}

func TestAuditClassifiesStoredCredentials(t *testing.T) {
	ctx := context.Background()
	legacy := security.MustPasswordHasher(testParams(1))
	current := security.MustPasswordHasher(testParams(2))

	outdated, err := legacy.Hash(ctx, []byte("correct horse"))
	if err != nil {
		t.Fatalf("hash outdated: %v", err)
	}
	fresh, err := current.Hash(ctx, []byte("battery staple"))
	if err != nil {
		t.Fatalf("hash current: %v", err)
	}
	bcryptArtifact, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	scanner := sliceScanner{rows: []storedCredential{
		{1, fresh},
		{2, outdated},
		{3, string(bcryptArtifact)},
		{4, "$argon2id$v=19$m=8192$broken"},
		{5, "plaintext-leftover"},
	}}
	report, err := Audit(ctx, scanner, current, 100)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	if report.Scanned != 5 || report.Current != 1 || report.Outdated != 2 || report.Malformed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !slices.Equal(report.MalformedUserIDs, []uint{4, 5}) {
		t.Fatalf("unexpected malformed users: %v", report.MalformedUserIDs)
	}
	if report.ByAlgorithm["argon2id"] != 3 || report.ByAlgorithm["bcrypt"] != 1 || report.ByAlgorithm["unknown"] != 1 {
		t.Fatalf("unexpected algorithm counts: %v", report.ByAlgorithm)
	}

	details := report.Details()
	for _, want := range []string{"scanned=5", "outdated=2", "algorithm_bcrypt=1", "malformed_user_ids=[4 5]"} {
		if !slices.Contains(details, want) {
			t.Fatalf("expected %q in details %v", want, details)
		}
	}
}

func TestAuditPropagatesScanError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Audit(context.Background(), sliceScanner{err: boom}, security.MustPasswordHasher(testParams(2)), 10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestAuditStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scanner := sliceScanner{rows: []storedCredential{{1, "x"}}}
	if _, err := Audit(ctx, scanner, security.MustPasswordHasher(testParams(2)), 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRootCommandRequiresEmail(t *testing.T) {
	for _, name := range []string{"verify", "check-email"} {
		cmd := NewRootCommand()
		cmd.SetArgs([]string{name, "--ci"})
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		if err := cmd.Execute(); err == nil || err.Error() != "email is required" {
			t.Fatalf("%s: expected missing email error, got %v", name, err)
		}
	}
}
