// Package source defines the provider adapter contract and its two
// implementations: a config-driven REST adapter for live providers and a
// static adapter for tests. The core makes no assumption about a provider's
// transport beyond this interface.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// RawPoints is a sparse mapping from a provider's metric names to raw,
// un-normalized values, plus optional provenance URLs.
type RawPoints struct {
	Values     map[string]any
	Provenance []string
}

// Adapter fetches one provider's view of an entity's metrics.
type Adapter interface {
	Source() metric.Source
	// Fetch returns raw points or a *FetchError describing why the
	// provider could not serve the request.
	Fetch(ctx context.Context, entityID, regionHint string) (RawPoints, error)
}

// FailureReason classifies why an adapter call failed.
type FailureReason string

const (
	ReasonTimeout     FailureReason = "timeout"
	ReasonQuota       FailureReason = "quota"
	ReasonUnavailable FailureReason = "unavailable"
	ReasonMalformed   FailureReason = "malformed"
	ReasonCircuitOpen FailureReason = "circuit_open"
)

// FetchError is the typed failure an adapter (or its surrounding machinery)
// produces. One source failing never aborts sibling fetches.
type FetchError struct {
	Source metric.Source
	Reason FailureReason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a typed adapter failure.
func NewFetchError(source metric.Source, reason FailureReason, err error) *FetchError {
	return &FetchError{Source: source, Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from an error chain, defaulting to
// unavailable.
func ReasonOf(err error) FailureReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonUnavailable
}
