// Package transit resolves, for each centroid, the minimum public-transit
// travel time to its pruned candidate clinics.
package transit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/points"
	"github.com/sells-group/transit-access/internal/prune"
	"github.com/sells-group/transit-access/internal/resilience"
	"github.com/sells-group/transit-access/pkg/routing"
)

// CandidateResult is the outcome of one routing query: either a travel
// time in minutes or the failure that prevented one. The minimum
// reduction is defined over this type so failed candidates never collapse
// into zeros.
type CandidateResult struct {
	Minutes float64
	Err     error
}

// Failed reports whether this candidate produced no usable travel time.
func (r CandidateResult) Failed() bool { return r.Err != nil }

// Result holds all candidate outcomes for one centroid.
type Result struct {
	GEOID      string
	Coord      string
	Candidates []CandidateResult
}

// Min returns the minimum travel time in minutes over the successful
// candidates. ok is false when every candidate failed: the centroid's
// travel time is unavailable, which is distinct from zero.
func (r Result) Min() (minutes float64, ok bool) {
	min := math.Inf(1)
	for _, c := range r.Candidates {
		if c.Failed() {
			continue
		}
		if c.Minutes < min {
			min = c.Minutes
		}
	}
	if math.IsInf(min, 1) {
		return 0, false
	}
	return min, true
}

// Resolver issues routing queries for pruned candidate sets.
type Resolver struct {
	client    routing.Client
	departure time.Time
	retry     resilience.RetryConfig
}

// NewResolver creates a Resolver departing at the given instant.
func NewResolver(client routing.Client, departure time.Time, retry resilience.RetryConfig) *Resolver {
	return &Resolver{client: client, departure: departure, retry: retry}
}

// Resolve queries every candidate for one centroid. A candidate failure
// is recorded and never aborts the remaining candidates.
func (r *Resolver) Resolve(ctx context.Context, centroid points.Centroid, candidates []prune.Candidate) Result {
	log := zap.L().With(zap.String("geoid", centroid.GEOID))
	origin := coordString(centroid.Lat, centroid.Lon)

	result := Result{
		GEOID:      centroid.GEOID,
		Coord:      centroid.Coord,
		Candidates: make([]CandidateResult, 0, len(candidates)),
	}

	for i, cand := range candidates {
		dest := coordString(cand.Lat, cand.Lon)
		d, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (time.Duration, error) {
			return r.client.TransitDuration(ctx, origin, dest, r.departure)
		})
		if err != nil {
			log.Debug("candidate query failed",
				zap.Int("candidate", i),
				zap.String("destination", dest),
				zap.Error(err),
			)
			result.Candidates = append(result.Candidates, CandidateResult{Err: err})
			continue
		}
		result.Candidates = append(result.Candidates, CandidateResult{Minutes: d.Minutes()})
	}

	if _, ok := result.Min(); !ok {
		log.Warn("no transit route to any candidate", zap.Int("candidates", len(candidates)))
	}
	return result
}

// ResolveAll processes centroids sequentially in input order. After each
// centroid, onCentroid (if non-nil) receives the result so callers can
// checkpoint progress; an error from the callback aborts the run. Centroids
// present in skip are assumed already resolved and are not re-queried.
func (r *Resolver) ResolveAll(
	ctx context.Context,
	centroids []points.Centroid,
	candidates map[string][]prune.Candidate,
	skip map[string]bool,
	onCentroid func(Result) error,
) ([]Result, error) {
	results := make([]Result, 0, len(centroids))
	for i, centroid := range centroids {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "transit: resolve cancelled")
		}
		if skip[centroid.GEOID] {
			continue
		}

		cands, ok := candidates[centroid.GEOID]
		if !ok {
			return results, eris.Errorf("transit: no candidate set for centroid %s", centroid.GEOID)
		}

		result := r.Resolve(ctx, centroid, cands)
		results = append(results, result)

		if onCentroid != nil {
			if err := onCentroid(result); err != nil {
				return results, eris.Wrapf(err, "transit: checkpoint centroid %s", centroid.GEOID)
			}
		}

		if (i+1)%100 == 0 {
			zap.L().Info("resolve progress", zap.Int("done", i+1), zap.Int("total", len(centroids)))
		}
	}
	return results, nil
}

// ParseDeparture combines an ISO 8601 date and an HH:MM:SS time into the
// departure instant, interpreted in the local timezone.
func ParseDeparture(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "transit: parse departure %q %q", date, clock)
	}
	return t, nil
}

func coordString(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
