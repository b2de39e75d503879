package credentials

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sandeepkv93/credential-auth/internal/security"
)

const maxReportedMalformed = 20

type HashScanner interface {
	ScanPasswordHashes(ctx context.Context, batchSize int, fn func(userID uint, hash string) error) error
}

type RehashPolicy interface {
	NeedsRehash(artifact string) (bool, error)
}

// Report summarises stored credentials against the configured parameters.
// Outdated credentials are upgraded on the owner's next successful login;
// malformed ones can never verify and need a reset.
type Report struct {
	Scanned     int
	Current     int
	Outdated    int
	Malformed   int
	ByAlgorithm map[string]int
	// MalformedUserIDs holds the first few offending users.
	MalformedUserIDs []uint
}

func Audit(ctx context.Context, scanner HashScanner, policy RehashPolicy, batchSize int) (*Report, error) {
	report := &Report{ByAlgorithm: map[string]int{}}
	err := scanner.ScanPasswordHashes(ctx, batchSize, func(userID uint, artifact string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++
		report.ByAlgorithm[security.Algorithm(artifact)]++

		outdated, err := policy.NeedsRehash(artifact)
		switch {
		case errors.Is(err, security.ErrMalformedHash):
			report.Malformed++
			if len(report.MalformedUserIDs) < maxReportedMalformed {
				report.MalformedUserIDs = append(report.MalformedUserIDs, userID)
			}
		case err != nil:
			return err
		case outdated:
			report.Outdated++
		default:
			report.Current++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan credentials: %w", err)
	}
	return report, nil
}

func (r *Report) Details() []string {
	details := []string{
		fmt.Sprintf("scanned=%d", r.Scanned),
		fmt.Sprintf("current=%d", r.Current),
		fmt.Sprintf("outdated=%d", r.Outdated),
		fmt.Sprintf("malformed=%d", r.Malformed),
	}
	for _, alg := range slices.Sorted(maps.Keys(r.ByAlgorithm)) {
		details = append(details, fmt.Sprintf("algorithm_%s=%d", alg, r.ByAlgorithm[alg]))
	}
	if len(r.MalformedUserIDs) > 0 {
		details = append(details, fmt.Sprintf("malformed_user_ids=%v", r.MalformedUserIDs))
	}
	return details
}
