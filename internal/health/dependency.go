package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-auth/internal/security"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	sqlDB, err := c.db.DB()
	if err != nil {
		res.Healthy = false
		res.Error = err.Error()
		return res
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

type credentialHasher interface {
	Hash(ctx context.Context, plaintext []byte) (string, error)
	Verify(ctx context.Context, artifact string, plaintext []byte) (security.VerificationOutcome, error)
}

// HasherChecker derives and verifies a throwaway credential. It fails when
// the configured parameters cannot complete inside the probe timeout.
type HasherChecker struct {
	hasher credentialHasher
}

func NewHasherChecker(hasher credentialHasher) Checker {
	if hasher == nil {
		return nil
	}
	return &HasherChecker{hasher: hasher}
}

func (c *HasherChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "password_hasher", Healthy: true}
	probe := []byte("readiness-probe")
	artifact, err := c.hasher.Hash(ctx, probe)
	if err == nil {
		var outcome security.VerificationOutcome
		outcome, err = c.hasher.Verify(ctx, artifact, probe)
		if err == nil && outcome != security.OutcomeValid {
			err = fmt.Errorf("self-check verified as %s", outcome)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}
