package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebita-intel/metrics-cli/internal/metric"
	"github.com/ebita-intel/metrics-cli/internal/resilience"
)

const defaultUserAgent = "metrics-cli/1.0"

// RESTConfig describes one JSON-over-HTTP provider declaratively: a URL
// template and a metric-name to JSONPath mapping. New providers are wired
// from configuration, not code.
type RESTConfig struct {
	Source metric.Source `yaml:"source" mapstructure:"source"`
	// URLTemplate may contain {id} and {region} placeholders.
	URLTemplate string            `yaml:"url_template" mapstructure:"url_template"`
	Headers     map[string]string `yaml:"headers" mapstructure:"headers"`
	// Fields maps provider metric names to JSONPath expressions evaluated
	// against the response body.
	Fields  map[string]string `yaml:"fields" mapstructure:"fields"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	// RequestsPerSecond smooths bursts below the sliding-window quota.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RESTAdapter fetches a JSON document and extracts metric fields by path.
type RESTAdapter struct {
	cfg     RESTConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewREST builds an adapter from cfg.
func NewREST(cfg RESTConfig) *RESTAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &RESTAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (a *RESTAdapter) Source() metric.Source { return a.cfg.Source }

func (a *RESTAdapter) Fetch(ctx context.Context, entityID, regionHint string) (RawPoints, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonTimeout, err)
	}

	addr := strings.NewReplacer(
		"{id}", url.QueryEscape(entityID),
		"{region}", url.QueryEscape(regionHint),
	).Replace(a.cfg.URLTemplate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonMalformed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return RawPoints{}, NewFetchError(a.cfg.Source, ReasonTimeout, err)
		}
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonUnavailable, resilience.NewTransientError(err, 0))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonQuota,
			resilience.NewTransientError(eris.Errorf("status %d", resp.StatusCode), resp.StatusCode))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonUnavailable,
			resilience.NewTransientError(eris.Errorf("status %d", resp.StatusCode), resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonUnavailable, eris.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonUnavailable, err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonMalformed, err)
	}

	points := RawPoints{
		Values:     make(map[string]any, len(a.cfg.Fields)),
		Provenance: []string{addr},
	}
	for name, path := range a.cfg.Fields {
		val, err := jsonpath.Get(path, doc)
		if err != nil {
			// sparse payloads are normal; missing fields stay absent.
			zap.L().Debug("field path not found",
				zap.String("source", string(a.cfg.Source)),
				zap.String("field", name),
				zap.String("path", path))
			continue
		}
		// jsonpath sometimes yields a one-element list for a scalar match.
		if list, ok := val.([]any); ok && len(list) > 0 {
			val = list[0]
		}
		points.Values[name] = val
	}
	if len(points.Values) == 0 {
		return RawPoints{}, NewFetchError(a.cfg.Source, ReasonMalformed, eris.New("no recognized fields in payload"))
	}
	return points, nil
}
