package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ebita-intel/metrics-cli/internal/cache"
	"github.com/ebita-intel/metrics-cli/internal/metric"
	"github.com/ebita-intel/metrics-cli/internal/orchestrator"
	"github.com/ebita-intel/metrics-cli/internal/ratelimit"
	"github.com/ebita-intel/metrics-cli/internal/resilience"
	"github.com/ebita-intel/metrics-cli/internal/source"
	"github.com/ebita-intel/metrics-cli/internal/validate"
)

// env holds the process-wide collaborators, constructed once at startup and
// injected into the orchestrator. No hidden global state.
type env struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        cache.Cache
	Limiter      *ratelimit.Limiter
	Breakers     *resilience.SourceBreakers
	Registry     *source.Registry
	Specs        map[metric.Source]metric.SourceSpec
}

func (e *env) Close() {
	if err := e.Cache.Close(); err != nil {
		zap.L().Warn("closing cache", zap.Error(err))
	}
}

func buildEnv(ctx context.Context) (*env, error) {
	c, err := openCache(ctx)
	if err != nil {
		return nil, err
	}

	specs := cfg.SourceSpecs()
	limiter := ratelimit.New(ratelimit.FromSpecs(specs))
	breakers := resilience.NewSourceBreakers(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecs) * time.Second,
	})

	registry := source.NewRegistry()
	for _, ac := range cfg.Adapters {
		registry.Register(source.NewREST(source.RESTConfig{
			Source:            metric.Source(ac.Source),
			URLTemplate:       ac.URLTemplate,
			Headers:           ac.Headers,
			Fields:            ac.Fields,
			Timeout:           time.Duration(ac.TimeoutSecs) * time.Second,
			RequestsPerSecond: ac.RequestsPerSecond,
		}), ac.Regions...)
	}

	profiles := validate.DefaultProfiles()
	if cfg.ProfilesPath != "" {
		profiles, err = validate.LoadProfiles(cfg.ProfilesPath)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	live, fundamental, structural := cfg.TTLDurations()
	orch := orchestrator.New(orchestrator.Options{
		Registry: registry,
		Limiter:  limiter,
		Cache:    c,
		TTLs:     cache.TTLs{Live: live, Fundamental: fundamental, Structural: structural},
		Specs:    specs,
		Profiles: profiles,
		Breakers: breakers,
		Retry:    resilience.RetryConfig{MaxAttempts: cfg.Fetch.RetryAttempts},
		Timeout:  time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Outlier:  validate.OutlierStrategy(cfg.Fetch.OutlierStrategy),
	})

	return &env{
		Orchestrator: orch,
		Cache:        c,
		Limiter:      limiter,
		Breakers:     breakers,
		Registry:     registry,
		Specs:        specs,
	}, nil
}

func openCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return cache.NewSQLite(cfg.Cache.SQLitePath)
	case "postgres":
		if cfg.Cache.PostgresURL == "" {
			return nil, eris.New("cache.postgres_url is required for the postgres backend")
		}
		return cache.NewPostgres(ctx, cfg.Cache.PostgresURL)
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return nil, eris.New("cache.redis_addr is required for the redis backend")
		}
		return cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	default:
		return cache.NewMemory(), nil
	}
}
