// Package orchestrator coordinates one "fetch metrics for entity X"
// request: cache check, concurrent provider fan-out through the rate
// limiter and circuit breakers, per-source normalization and validation,
// cross-source reconciliation, and the final cache write.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ebita-intel/metrics-cli/internal/cache"
	"github.com/ebita-intel/metrics-cli/internal/metric"
	"github.com/ebita-intel/metrics-cli/internal/normalize"
	"github.com/ebita-intel/metrics-cli/internal/ratelimit"
	"github.com/ebita-intel/metrics-cli/internal/reconcile"
	"github.com/ebita-intel/metrics-cli/internal/resilience"
	"github.com/ebita-intel/metrics-cli/internal/source"
	"github.com/ebita-intel/metrics-cli/internal/validate"
)

// entityIDPattern is the only input the core hard-fails on: an identifier
// that cannot be a ticker is a caller bug, not degraded data.
var entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-&]{0,19}$`)

// ErrBadEntityID is returned for identifiers that fail the shape check.
var ErrBadEntityID = eris.New("entity identifier is malformed")

// Options wires the orchestrator's collaborators and tuning.
type Options struct {
	Registry *source.Registry
	Limiter  *ratelimit.Limiter
	Cache    cache.Cache
	TTLs     cache.TTLs
	Specs    map[metric.Source]metric.SourceSpec
	Profiles *validate.Profiles
	Breakers *resilience.SourceBreakers
	Retry    resilience.RetryConfig
	// Timeout bounds each adapter call, rate limiter wait included.
	Timeout time.Duration
	Outlier validate.OutlierStrategy
}

// Orchestrator runs the request state machine. Safe for concurrent use;
// the cache and rate limiter are the only state shared across requests.
type Orchestrator struct {
	opts  Options
	recon *reconcile.Reconciler
	group singleflight.Group
	now   func() time.Time
}

// New builds an orchestrator, filling unset options with defaults.
func New(opts Options) *Orchestrator {
	if opts.Registry == nil {
		opts.Registry = source.NewRegistry()
	}
	if opts.Specs == nil {
		opts.Specs = metric.DefaultSourceSpecs()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.FromSpecs(opts.Specs))
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.TTLs == (cache.TTLs{}) {
		opts.TTLs = cache.DefaultTTLs()
	}
	if opts.Profiles == nil {
		opts.Profiles = validate.DefaultProfiles()
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewSourceBreakers(resilience.DefaultBreakerConfig())
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 12 * time.Second
	}
	if opts.Outlier == "" {
		opts.Outlier = validate.OutlierZScore
	}
	return &Orchestrator{
		opts:  opts,
		recon: reconcile.New(opts.Specs),
		now:   time.Now,
	}
}

// WithNow swaps the clock. Testing hook.
func (o *Orchestrator) WithNow(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Request identifies one consumer query.
type Request struct {
	EntityID string
	// Region selects regional exchange adapters in addition to the
	// global providers.
	Region string
	// Industry picks the plausibility profile; unknown names fall back
	// to the wide default.
	Industry string
	UseCache bool
}

// FetchFinancials resolves one entity's consensus snapshot. Partial source
// outages degrade the result, they never fail it; only a malformed
// identifier returns an error.
func (o *Orchestrator) FetchFinancials(ctx context.Context, req Request) (*metric.EntityFinancials, error) {
	entityID := strings.ToUpper(strings.TrimSpace(req.EntityID))
	if !entityIDPattern.MatchString(entityID) {
		return nil, eris.Wrapf(ErrBadEntityID, "%q", req.EntityID)
	}

	// unknown industries collapse onto the default profile and share its key
	industry := o.opts.Profiles.For(req.Industry).Name
	key := cache.FinancialsKey(entityID, req.Region, industry, nil)
	if req.UseCache {
		var hit metric.EntityFinancials
		ok, err := cache.GetJSON(ctx, o.opts.Cache, key, &hit)
		if err != nil {
			zap.L().Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			hit.FromCache = true
			return &hit, nil
		}
	}

	// Concurrent callers for the same key share one in-flight fetch
	// instead of issuing duplicate provider calls. The flight is detached
	// from the initiating caller's cancellation: its result is handed to
	// other waiters and written to the cache, so one disconnecting client
	// must not turn it into an all-null record.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := o.group.Do(key, func() (any, error) {
		return o.fetch(flightCtx, entityID, req)
	})
	if err != nil {
		return nil, err
	}
	record := v.(*metric.EntityFinancials)

	if req.UseCache {
		ttl := o.opts.TTLs.Slowest(presentKinds(record.Metrics))
		if err := cache.SetJSON(flightCtx, o.opts.Cache, key, record, ttl); err != nil {
			zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return record, nil
}

// sourceResult is one adapter's settled outcome.
type sourceResult struct {
	source metric.Source
	raw    source.RawPoints
	err    error
}

func (o *Orchestrator) fetch(ctx context.Context, entityID string, req Request) (*metric.EntityFinancials, error) {
	requestID := uuid.NewString()
	log := zap.L().With(
		zap.String("request_id", requestID),
		zap.String("entity", entityID),
	)

	adapters := o.opts.Registry.ForRegion(req.Region)
	results := o.fanOut(ctx, adapters, entityID, req.Region, log)

	warnings := []string{}
	var (
		sourcesUsed []metric.Source
		points      []metric.Point
		blocked     = make(map[metric.Source]*validate.Result)
		industryAgg validate.Result
		consistAgg  validate.Result
	)

	profile := o.opts.Profiles.For(req.Industry)
	observedAt := o.now()

	for _, res := range results {
		if res.err != nil {
			reason := source.ReasonOf(res.err)
			warnings = append(warnings, fmt.Sprintf("provider %s unavailable (%s)", res.source, reason))
			log.Warn("source failed",
				zap.String("source", string(res.source)),
				zap.String("reason", string(reason)),
				zap.Error(res.err))
			continue
		}

		pts := normalize.Points(res.source, res.raw.Values, res.raw.Provenance, observedAt)
		if len(pts) == 0 {
			warnings = append(warnings, fmt.Sprintf("provider %s returned no usable metrics", res.source))
			continue
		}
		sourcesUsed = append(sourcesUsed, res.source)

		cons := validate.Consistency(pts)
		consistAgg.Errors = append(consistAgg.Errors, cons.Errors...)
		consistAgg.Warnings = append(consistAgg.Warnings, cons.Warnings...)
		for _, msg := range cons.Errors {
			warnings = append(warnings, fmt.Sprintf("%s: %s", res.source, msg))
		}
		if len(cons.Blocked) > 0 {
			blocked[res.source] = &cons
		}

		ind := validate.Industry(pts, profile)
		industryAgg.Warnings = append(industryAgg.Warnings, ind.Warnings...)
		for _, msg := range ind.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", res.source, msg))
		}

		points = append(points, pts...)
	}

	records, anomalyWarnings := o.reconcileAll(points, blocked)
	warnings = append(warnings, anomalyWarnings...)

	reconcile.Derive(records)
	warnings = append(warnings, reconcile.CheckInvariants(records)...)

	financials := &metric.EntityFinancials{
		EntityID:          entityID,
		Region:            strings.ToLower(strings.TrimSpace(req.Region)),
		RequestID:         requestID,
		Metrics:           records,
		OverallConfidence: metric.OverallConfidenceOf(records),
		MissingMetrics:    missingKinds(records),
		SourcesUsed:       sourcesUsed,
		Warnings:          warnings,
		AsOf:              observedAt,
	}
	financials.QualityScore = validate.Quality(completeness(records), consistAgg, industryAgg)

	o.cacheSourcePayloads(ctx, entityID, results)

	log.Info("request reconciled",
		zap.Int("sources_used", len(sourcesUsed)),
		zap.Int("metrics", len(records)),
		zap.Float64("overall_confidence", financials.OverallConfidence),
		zap.Int("warnings", len(warnings)))
	return financials, nil
}

// fanOut invokes every adapter concurrently and waits for all of them to
// settle. A failing adapter yields a typed result; it never aborts its
// siblings.
func (o *Orchestrator) fanOut(ctx context.Context, adapters []source.Adapter, entityID, region string, log *zap.Logger) []sourceResult {
	results := make([]sourceResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)

	for i, a := range adapters {
		g.Go(func() error {
			src := a.Source()
			results[i] = sourceResult{source: src}

			if o.opts.Limiter.QuotaExceeded(src) {
				results[i].err = source.NewFetchError(src, source.ReasonQuota, nil)
				return nil
			}

			breaker := o.opts.Breakers.For(src)
			if err := breaker.Allow(); err != nil {
				results[i].err = source.NewFetchError(src, source.ReasonCircuitOpen, err)
				return nil
			}

			callCtx, cancel := context.WithTimeout(gctx, o.opts.Timeout)
			defer cancel()

			raw, err := resilience.DoVal(callCtx, o.opts.Retry, string(src), func(ctx context.Context) (source.RawPoints, error) {
				if err := o.opts.Limiter.Wait(ctx, src); err != nil {
					return source.RawPoints{}, source.NewFetchError(src, source.ReasonTimeout, err)
				}
				return a.Fetch(ctx, entityID, region)
			})
			breaker.Record(err)
			if err != nil {
				if callCtx.Err() != nil {
					err = source.NewFetchError(src, source.ReasonTimeout, err)
				}
				results[i].err = err
				return nil
			}
			results[i].raw = raw
			return nil
		})
	}
	// goroutines only record results, they never return errors.
	if err := g.Wait(); err != nil {
		log.Warn("fan-out interrupted", zap.Error(err))
	}
	return results
}

// reconcileAll groups surviving points per kind, filters cross-source
// outliers, and reconciles each metric. Blocked points are withheld unless
// they are a metric's only observations, in which case they participate
// with capped confidence rather than being discarded.
func (o *Orchestrator) reconcileAll(points []metric.Point, blocked map[metric.Source]*validate.Result) (map[metric.Kind]metric.ConsensusRecord, []string) {
	surviving := make([]metric.Point, 0, len(points))
	withheld := make(map[metric.Kind][]metric.Point)
	now := o.now()
	var warnings []string
	for _, p := range points {
		// observations older than their class lifetime do not enter consensus
		if age := now.Sub(p.ObservedAt); age > o.opts.TTLs.For(p.Metric.Class()) {
			warnings = append(warnings, fmt.Sprintf(
				"stale %s observation from %s dropped (age %s)", p.Metric, p.Source, age.Round(time.Second)))
			continue
		}
		if res, ok := blocked[p.Source]; ok && res.IsBlocked(p.Metric) {
			withheld[p.Metric] = append(withheld[p.Metric], p)
			continue
		}
		surviving = append(surviving, p)
	}

	byKind := metric.ByKind(surviving)
	soleSource := make(map[metric.Kind]bool)
	for kind, pts := range withheld {
		if len(byKind[kind]) == 0 {
			byKind[kind] = pts
			soleSource[kind] = true
		}
	}

	records := make(map[metric.Kind]metric.ConsensusRecord, len(byKind))
	for kind, pts := range byKind {
		pts = validate.FilterOutliers(o.opts.Outlier, pts)
		rec := o.recon.Reconcile(kind, pts)

		if soleSource[kind] && rec.Value != nil {
			if rec.Confidence > 30 {
				rec.Confidence = 30
			}
			warnings = append(warnings, fmt.Sprintf(
				"metric %s kept from its only source despite failed consistency checks", kind))
		}
		if rec.IsAnomaly && len(rec.AnomalySources) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"anomaly in metric %s: %.1f%% variance across sources", kind, reconcile.Variation(pts)*100))
		}
		records[kind] = rec
	}
	sort.Strings(warnings)
	return records, warnings
}

// cacheSourcePayloads writes each successful provider payload to its
// auxiliary cache so diagnostics can replay a source's view.
func (o *Orchestrator) cacheSourcePayloads(ctx context.Context, entityID string, results []sourceResult) {
	for _, res := range results {
		if res.err != nil {
			continue
		}
		key := cache.SourceKey(res.source, entityID)
		if err := cache.SetJSON(ctx, o.opts.Cache, key, res.raw.Values, o.opts.TTLs.Fundamental); err != nil {
			zap.L().Debug("aux cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func presentKinds(records map[metric.Kind]metric.ConsensusRecord) []metric.Kind {
	out := make([]metric.Kind, 0, len(records))
	for kind, rec := range records {
		if rec.Value != nil {
			out = append(out, kind)
		}
	}
	return out
}

func missingKinds(records map[metric.Kind]metric.ConsensusRecord) []metric.Kind {
	var out []metric.Kind
	for _, kind := range metric.Kinds() {
		if rec, ok := records[kind]; !ok || rec.Value == nil {
			out = append(out, kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func completeness(records map[metric.Kind]metric.ConsensusRecord) float64 {
	total := len(metric.Kinds())
	if total == 0 {
		return 0
	}
	present := 0
	for _, rec := range records {
		if rec.Value != nil {
			present++
		}
	}
	return float64(present) / float64(total)
}
