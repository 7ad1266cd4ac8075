package region

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/transit-access/internal/acs"
	"github.com/sells-group/transit-access/internal/checkpoint"
)

func fptr(v float64) *float64 { return &v }

func squareMP(t *testing.T, minX, minY, size float64) *geom.MultiPolygon {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minX, minY,
		minX + size, minY,
		minX + size, minY + size,
		minX, minY + size,
		minX, minY,
	})
	require.NoError(t, poly.Push(ring))
	require.NoError(t, mp.Push(poly))
	return mp
}

func writeSquareShapefile(t *testing.T, path string, geoids []string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	defer w.Close()

	w.SetFields([]shp.Field{shp.StringField("GEOID", 20)})

	for i, geoid := range geoids {
		x := float64(i)
		part := []shp.Point{
			{X: x, Y: 0}, {X: x + 1, Y: 0}, {X: x + 1, Y: 1}, {X: x, Y: 1}, {X: x, Y: 0},
		}
		pl := shp.NewPolyLine([][]shp.Point{part})
		p := shp.Polygon(*pl)
		idx := int(w.Write(&p))
		require.NoError(t, w.WriteAttribute(idx, 0, geoid))
	}
}

func TestLoadPolygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.shp")
	writeSquareShapefile(t, path, []string{"g1", "g2"})

	polys, err := LoadPolygons(path, "GEOID")
	require.NoError(t, err)
	require.Len(t, polys, 2)
	require.Contains(t, polys, "g1")
	require.Contains(t, polys, "g2")
	assert.Equal(t, 1, polys["g1"].NumPolygons())
}

func TestLoadPolygons_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.shp")
	writeSquareShapefile(t, path, []string{"g1"})

	_, err := LoadPolygons(path, "TRACTID")
	require.Error(t, err)
}

func TestJoin(t *testing.T) {
	polys := map[string]*geom.MultiPolygon{
		"g1": squareMP(t, 0, 0, 1),
		"g2": squareMP(t, 1, 0, 1),
		"g3": squareMP(t, 2, 0, 1),
	}
	demo := []acs.Demographics{
		{GEOID: "g1", TotalPop: 1000, SubgroupPop: 250, PctSubgroup: 25},
		{GEOID: "g2", TotalPop: 0, SubgroupPop: 0, PctSubgroup: math.NaN()},
		{GEOID: "orphan", TotalPop: 5, SubgroupPop: 1, PctSubgroup: 20},
	}
	times := []checkpoint.TravelTime{
		{GEOID: "g1", Minutes: fptr(12)},
		{GEOID: "g2", Minutes: nil},
		{GEOID: "orphan", Minutes: fptr(3)}, // no geometry: dropped
	}

	units := Join(polys, demo, times)
	require.Len(t, units, 3)

	// Ordered by GEOID, every row has geometry.
	assert.Equal(t, "g1", units[0].GEOID)
	assert.Equal(t, "g2", units[1].GEOID)
	assert.Equal(t, "g3", units[2].GEOID)
	for _, u := range units {
		assert.NotNil(t, u.Geometry)
	}

	require.NotNil(t, units[0].Minutes)
	assert.InDelta(t, 12, *units[0].Minutes, 1e-9)
	assert.Equal(t, 1000, units[0].TotalPop)

	// g2: unavailable travel time is nil, not zero.
	assert.Nil(t, units[1].Minutes)
	assert.True(t, math.IsNaN(units[1].PctSubgroup))

	// g3: no demographics, no travel time record at all.
	assert.Nil(t, units[2].Minutes)
}

func TestJoin_NormalizesNonFinite(t *testing.T) {
	polys := map[string]*geom.MultiPolygon{"g1": squareMP(t, 0, 0, 1)}
	inf := math.Inf(1)
	nan := math.NaN()

	units := Join(polys, nil, []checkpoint.TravelTime{{GEOID: "g1", Minutes: &inf}})
	assert.Nil(t, units[0].Minutes)

	units = Join(polys, nil, []checkpoint.TravelTime{{GEOID: "g1", Minutes: &nan}})
	assert.Nil(t, units[0].Minutes)
}

func TestBounds(t *testing.T) {
	units := []Unit{
		{GEOID: "g1", Geometry: squareMP(t, 0, 0, 1)},
		{GEOID: "g2", Geometry: squareMP(t, 4, 2, 1)},
	}
	b := Bounds(units)
	assert.InDelta(t, 0, b.Min(0), 1e-9)
	assert.InDelta(t, 0, b.Min(1), 1e-9)
	assert.InDelta(t, 5, b.Max(0), 1e-9)
	assert.InDelta(t, 3, b.Max(1), 1e-9)
}

func TestWriteShapefileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")

	units := []Unit{
		{GEOID: "g1", Geometry: squareMP(t, 0, 0, 1), TotalPop: 1000, PctSubgroup: 25.5, Minutes: fptr(12)},
		{GEOID: "g2", Geometry: squareMP(t, 1, 0, 1), TotalPop: 0, PctSubgroup: math.NaN(), Minutes: nil},
	}

	require.NoError(t, WriteShapefile(path, units))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var geoids []string
	var pcts []string
	var minutes []string
	for r.Next() {
		geoids = append(geoids, strings.TrimRight(r.Attribute(0), "\x00"))
		pcts = append(pcts, r.Attribute(2))
		minutes = append(minutes, r.Attribute(3))
	}
	require.Len(t, geoids, 2)
	assert.Equal(t, "g1", geoids[0])
	assert.Contains(t, pcts[0], "25.5")
	// Missing values export as the -1 sentinel: an unavailable travel
	// time, and the undefined percentage of a zero-population unit.
	assert.Contains(t, minutes[1], "-1")
	assert.Contains(t, pcts[1], "-1")
}
