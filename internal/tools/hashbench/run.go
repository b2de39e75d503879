package hashbench

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sandeepkv93/credential-auth/internal/security"
)

const benchPassword = "hashbench-correct-horse"

type Hasher interface {
	Hash(ctx context.Context, plaintext []byte) (string, error)
	Verify(ctx context.Context, artifact string, plaintext []byte) (security.VerificationOutcome, error)
}

type Config struct {
	Profile     string
	Duration    time.Duration
	Rate        int
	Concurrency int
	BcryptCost  int
}

type Result struct {
	TotalOps    int64
	Failures    int64
	Valid       int64
	NeedsRehash int64
	Invalid     int64
	MeanLatency time.Duration
	MaxLatency  time.Duration
}

type fixture struct {
	artifact string
	password []byte
}

// Run drives verifications against h at the configured rate for Duration and
// reports outcome counts and latency. It measures what a login costs under
// the current parameters, including the queueing behind the hasher's
// concurrency limit.
func Run(ctx context.Context, h Hasher, cfg Config) (Result, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	fixtures, err := fixturesForProfile(ctx, h, cfg)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures, valid, rehash, invalid, latencySum, latencyMax int64
	jobs := make(chan fixture, cfg.Concurrency*2)
	wg := sync.WaitGroup{}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				start := time.Now()
				outcome, err := h.Verify(ctx, job.artifact, job.password)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				elapsed := int64(time.Since(start))
				atomic.AddInt64(&total, 1)
				atomic.AddInt64(&latencySum, elapsed)
				for {
					cur := atomic.LoadInt64(&latencyMax)
					if elapsed <= cur || atomic.CompareAndSwapInt64(&latencyMax, cur, elapsed) {
						break
					}
				}
				switch outcome {
				case security.OutcomeValid:
					atomic.AddInt64(&valid, 1)
				case security.OutcomeValidNeedsRehash:
					atomic.AddInt64(&rehash, 1)
				default:
					atomic.AddInt64(&invalid, 1)
				}
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Rate))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			res := Result{
				TotalOps:    total,
				Failures:    failures,
				Valid:       valid,
				NeedsRehash: rehash,
				Invalid:     invalid,
				MaxLatency:  time.Duration(latencyMax),
			}
			if total > 0 {
				res.MeanLatency = time.Duration(latencySum / total)
			}
			return res, nil
		case <-ticker.C:
			select {
			case jobs <- fixtures[i%len(fixtures)]:
				i++
			case <-ctx.Done():
			}
		}
	}
}

func fixturesForProfile(ctx context.Context, h Hasher, cfg Config) ([]fixture, error) {
	profile := strings.ToLower(cfg.Profile)
	switch profile {
	case "", "current", "legacy", "mixed", "wrong-password":
	default:
		return nil, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	password := []byte(benchPassword)
	current, err := h.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("prepare current credential: %w", err)
	}
	currentOK := fixture{artifact: current, password: password}
	wrong := fixture{artifact: current, password: []byte("not-" + benchPassword)}
	if profile == "" || profile == "current" {
		return []fixture{currentOK}, nil
	}
	if profile == "wrong-password" {
		return []fixture{wrong}, nil
	}

	legacyArtifact, err := bcrypt.GenerateFromPassword(password, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare legacy credential: %w", err)
	}
	legacy := fixture{artifact: string(legacyArtifact), password: password}
	if profile == "legacy" {
		return []fixture{legacy}, nil
	}
	return []fixture{currentOK, currentOK, legacy, wrong}, nil
}
