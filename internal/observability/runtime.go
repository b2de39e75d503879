package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sandeepkv93/credential-auth/internal/config"
)

// Runtime owns the OTel providers of a process and the logger bridged to
// them.
type Runtime struct {
	Logger         *slog.Logger
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider

	shutdowns []providerShutdown
}

type providerShutdown struct {
	signal string
	fn     func(context.Context) error
}

// InitRuntime starts logs, metrics and traces in that order. If a later
// signal fails, the ones already started are shut down before returning.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	bootstrap := NewBootstrapLogger(cfg)
	rt := &Runtime{}

	lp, err := InitLogs(ctx, cfg, bootstrap)
	if err != nil {
		return nil, err
	}
	if lp != nil {
		rt.LoggerProvider = lp
		rt.onShutdown("logs", lp.Shutdown)
	}

	mp, err := InitMetrics(ctx, cfg, bootstrap)
	if err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	rt.MeterProvider = mp
	rt.onShutdown("metrics", mp.Shutdown)

	tp, err := InitTracing(ctx, cfg, bootstrap)
	if err != nil {
		return nil, errors.Join(err, rt.Shutdown(ctx))
	}
	rt.TracerProvider = tp
	rt.onShutdown("traces", tp.Shutdown)

	rt.Logger = InitLogger(cfg, lp)
	return rt, nil
}

func (r *Runtime) onShutdown(signal string, fn func(context.Context) error) {
	r.shutdowns = append(r.shutdowns, providerShutdown{signal: signal, fn: fn})
}

// Shutdown flushes providers in reverse start order, so records logged while
// spans and metrics flush are still exported. It is safe to call twice.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.shutdowns) - 1; i >= 0; i-- {
		s := r.shutdowns[i]
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.signal, err))
		}
	}
	r.shutdowns = nil
	return errors.Join(errs...)
}
