package region

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// DBF numeric fields have no NULL, so missing values export as -1.
// Importers must treat negatives as missing. missingPct covers the
// undefined percentage of a zero-population unit, which is distinct
// from a true 0% share.
const (
	missingMinutes = -1.0
	missingPct     = -1.0
)

// WriteShapefile writes joined units to a polygon shapefile with attribute
// columns GEOID, POP, PCTHISP, TRANSITMIN.
func WriteShapefile(path string, units []Unit) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "region: create shapefile %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("GEOID", 20),
		shp.NumberField("POP", 10),
		shp.FloatField("PCTHISP", 10, 2),
		shp.FloatField("TRANSITMIN", 10, 1),
	}
	w.SetFields(fields)

	for _, unit := range units {
		if unit.Geometry == nil {
			return eris.Errorf("region: unit %s has no geometry", unit.GEOID)
		}

		poly := multiPolygonToShape(unit.Geometry)
		idx := int(w.Write(poly))

		pct := unit.PctSubgroup
		if math.IsNaN(pct) {
			pct = missingPct
		}
		minutes := missingMinutes
		if unit.Minutes != nil {
			minutes = *unit.Minutes
		}

		if err := w.WriteAttribute(idx, 0, unit.GEOID); err != nil {
			return eris.Wrapf(err, "region: write GEOID for %s", unit.GEOID)
		}
		if err := w.WriteAttribute(idx, 1, unit.TotalPop); err != nil {
			return eris.Wrapf(err, "region: write POP for %s", unit.GEOID)
		}
		if err := w.WriteAttribute(idx, 2, pct); err != nil {
			return eris.Wrapf(err, "region: write PCTHISP for %s", unit.GEOID)
		}
		if err := w.WriteAttribute(idx, 3, minutes); err != nil {
			return eris.Wrapf(err, "region: write TRANSITMIN for %s", unit.GEOID)
		}
	}

	zap.L().Info("wrote shapefile", zap.String("path", path), zap.Int("units", len(units)))
	return nil
}

// multiPolygonToShape flattens a geom.MultiPolygon into a shapefile
// polygon, one part per ring.
func multiPolygonToShape(mp *geom.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			ring := poly.LinearRing(r)
			coords := ring.Coords()
			part := make([]shp.Point, 0, len(coords))
			for _, c := range coords {
				part = append(part, shp.Point{X: c[0], Y: c[1]})
			}
			parts = append(parts, part)
		}
	}

	pl := shp.NewPolyLine(parts)
	p := shp.Polygon(*pl)
	return &p
}
