package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// InstrumentRedisClient installs command metrics on the client backing the
// rehash lease. Only the first call per process installs the hook.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(otel.Meter(meterName))
		if err != nil {
			logger.Warn("redis command metrics disabled", "error", err)
			return
		}
		client.AddHook(hook)
	})
}

// redisMetricsHook labels every command with the keyspace it touched (the
// key up to its first ':'), so lease traffic is separable from anything else
// sharing the instance.
type redisMetricsHook struct {
	commands metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func newRedisMetricsHook(meter metric.Meter) (*redisMetricsHook, error) {
	commands, err := meter.Int64Counter("redis.command.total",
		metric.WithDescription("Redis commands by command, keyspace and status"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("redis.command.errors",
		metric.WithDescription("Redis command failures by error class"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("redis.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Redis round trip in seconds"))
	if err != nil {
		return nil, err
	}
	return &redisMetricsHook{commands: commands, failures: failures, latency: latency}, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		attrs := commandAttrs(cmd, err)
		h.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		h.count(ctx, attrs, err)
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("command", "pipeline"),
			attribute.String("keyspace", "mixed"),
			attribute.String("status", redisCommandStatus(err)),
		))
		for _, cmd := range cmds {
			h.count(ctx, commandAttrs(cmd, cmd.Err()), cmd.Err())
		}
		return err
	}
}

func (h *redisMetricsHook) count(ctx context.Context, attrs []attribute.KeyValue, err error) {
	h.commands.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil && !errors.Is(err, redis.Nil) {
		h.failures.Add(ctx, 1, metric.WithAttributes(attrs[0], attrs[1],
			attribute.String("error_type", classifyRedisError(err))))
	}
}

func commandAttrs(cmd redis.Cmder, err error) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("command", strings.ToLower(cmd.Name())),
		attribute.String("keyspace", commandKeyspace(cmd)),
		attribute.String("status", redisCommandStatus(err)),
	}
}

// commandKeyspace finds the first key of cmd: args[1] for plain commands,
// args[3] for EVAL/EVALSHA (script, numkeys, key...).
func commandKeyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	idx := 1
	switch strings.ToLower(cmd.Name()) {
	case "eval", "evalsha", "eval_ro", "evalsha_ro":
		idx = 3
	}
	if len(args) <= idx {
		return "none"
	}
	key, ok := args[idx].(string)
	if !ok || key == "" {
		return "none"
	}
	if prefix, _, found := strings.Cut(key, ":"); found {
		return prefix
	}
	return "unprefixed"
}

// redis.Nil on SET NX means the lease is held elsewhere, which is reported
// as "miss" rather than an error.
func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "refused"):
		return "connection"
	case strings.HasPrefix(msg, "noscript"):
		return "script"
	default:
		return "other"
	}
}
