package region

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/acs"
	"github.com/sells-group/transit-access/internal/checkpoint"
)

// Unit is one block group after the join: geometry plus demographic and
// travel-time attributes. Minutes is nil when no transit route exists.
type Unit struct {
	GEOID       string
	Geometry    *geom.MultiPolygon
	TotalPop    int
	SubgroupPop int
	PctSubgroup float64
	Minutes     *float64
}

// Join left-joins demographics and travel times onto polygon geometry by
// GEOID. Every returned Unit has geometry; travel times and demographics
// with no matching polygon are dropped. Non-finite travel-time values are
// normalized to the missing marker so they never reach numeric binning.
// Output is ordered by GEOID.
func Join(polys map[string]*geom.MultiPolygon, demo []acs.Demographics, times []checkpoint.TravelTime) []Unit {
	demoByID := make(map[string]acs.Demographics, len(demo))
	for _, d := range demo {
		demoByID[d.GEOID] = d
	}

	timeByID := make(map[string]*float64, len(times))
	var droppedTimes int
	for _, t := range times {
		if _, ok := polys[t.GEOID]; !ok {
			droppedTimes++
			continue
		}
		timeByID[t.GEOID] = normalizeMinutes(t.Minutes)
	}
	if droppedTimes > 0 {
		zap.L().Debug("join: dropped travel times with no matching geometry",
			zap.Int("count", droppedTimes))
	}

	units := make([]Unit, 0, len(polys))
	for geoid, mp := range polys {
		unit := Unit{
			GEOID:       geoid,
			Geometry:    mp,
			PctSubgroup: math.NaN(),
			Minutes:     timeByID[geoid],
		}
		if d, ok := demoByID[geoid]; ok {
			unit.TotalPop = d.TotalPop
			unit.SubgroupPop = d.SubgroupPop
			unit.PctSubgroup = d.PctSubgroup
		}
		units = append(units, unit)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].GEOID < units[j].GEOID })

	zap.L().Info("joined region attributes",
		zap.Int("units", len(units)),
		zap.Int("with_travel_time", len(timeByID)),
	)
	return units
}

// normalizeMinutes converts non-finite values (an all-failed reduction
// leaking +Inf, or NaN) to the explicit missing marker.
func normalizeMinutes(m *float64) *float64 {
	if m == nil {
		return nil
	}
	if math.IsNaN(*m) || math.IsInf(*m, 0) {
		return nil
	}
	return m
}

// Bounds returns the geographic envelope of all unit geometries.
func Bounds(units []Unit) *geom.Bounds {
	bounds := geom.NewBounds(geom.XY)
	for _, u := range units {
		if u.Geometry != nil {
			bounds.Extend(u.Geometry)
		}
	}
	return bounds
}
