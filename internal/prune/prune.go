// Package prune selects, for each centroid, the k geodesically nearest
// clinics so that only those candidates are sent to the transit routing
// service.
package prune

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/points"
)

// EarthRadiusM is the WGS84 mean earth radius in meters.
const EarthRadiusM = 6371008.8

// Candidate is one clinic within a centroid's pruned candidate set.
type Candidate struct {
	DistanceM float64
	Lat       float64
	Lon       float64
}

// Prune computes the distance from every centroid to every clinic and keeps
// the k nearest per centroid, ordered by non-decreasing distance. Ties keep
// the clinics' input order. If fewer than k clinics exist, all are returned.
// The result map is keyed by centroid GEOID.
func Prune(centroids []points.Centroid, clinics []points.Clinic, k int) (map[string][]Candidate, error) {
	if k <= 0 {
		return nil, eris.Errorf("prune: k must be positive, got %d", k)
	}
	if len(clinics) == 0 {
		return nil, eris.New("prune: no clinics to prune against")
	}

	keep := k
	if len(clinics) < keep {
		keep = len(clinics)
	}

	out := make(map[string][]Candidate, len(centroids))
	for _, c := range centroids {
		cands := make([]Candidate, 0, len(clinics))
		for _, cl := range clinics {
			cands = append(cands, Candidate{
				DistanceM: HaversineM(c.Lat, c.Lon, cl.Lat, cl.Lon),
				Lat:       cl.Lat,
				Lon:       cl.Lon,
			})
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].DistanceM < cands[j].DistanceM
		})
		out[c.GEOID] = cands[:keep]
	}

	zap.L().Debug("pruned candidate sets",
		zap.Int("centroids", len(centroids)),
		zap.Int("clinics", len(clinics)),
		zap.Int("k", keep),
	)
	return out, nil
}

// HaversineM returns the great-circle distance in meters between two
// WGS84 lat/lon points.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
