// Package region joins travel times and demographics onto block-group
// polygon geometry and exports the result.
package region

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadPolygons reads a polygon shapefile and returns MultiPolygons keyed
// by the named identifier field. Records with no geometry or no identifier
// are skipped.
func LoadPolygons(shpPath, idField string) (map[string]*geom.MultiPolygon, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, idField) {
			idIdx = i
			break
		}
	}
	if idIdx == -1 {
		return nil, eris.Errorf("region: shapefile missing field %s", idField)
	}

	out := make(map[string]*geom.MultiPolygon)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		id := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		if id == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		out[id] = mp
	}

	if skipped > 0 {
		zap.L().Debug("region: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	zap.L().Info("loaded polygons", zap.String("path", shpPath), zap.Int("count", len(out)))
	return out, nil
}

// LoadPolylines reads a polyline shapefile (e.g. highway geometry for the
// map overlay) and returns all line geometries.
func LoadPolylines(shpPath string) ([]*geom.MultiLineString, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	var out []*geom.MultiLineString
	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			continue
		}
		if mls := polyLineToMultiLineString(pl); mls != nil {
			out = append(out, mls)
		}
	}
	return out, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Each part becomes a single-ring polygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start, end := partRange(p.Parts, int32(len(p.Points)), i)

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("region: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("region: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// polyLineToMultiLineString converts a shapefile PolyLine to a
// geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)

	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partRange(pl.Parts, int32(len(pl.Points)), i)

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}

		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("region: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func partRange(parts []int32, total, i int32) (start, end int32) {
	start = parts[i]
	if int(i+1) < len(parts) {
		end = parts[i+1]
	} else {
		end = total
	}
	return start, end
}
