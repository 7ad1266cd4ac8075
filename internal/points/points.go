// Package points loads the centroid and clinic point locations used as
// travel origins and destinations.
package points

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Centroid is a population-weighted representative point for one block group.
type Centroid struct {
	GEOID    string
	CountyFP string
	Lat      float64
	Lon      float64
	// Coord is the combined "lat, lon" string carried as a human-readable
	// label. Joins use GEOID, never this string.
	Coord string
}

// Clinic is a service location; clinics carry no identifier beyond position.
type Clinic struct {
	Lat float64
	Lon float64
}

// centroid file column names, matched case-insensitively.
const (
	colLatitude  = "latitude"
	colLongitude = "longitude"
	colCountyFP  = "countyfp"
	colGEOID     = "geoid"
)

// LoadCentroids reads a delimited centroid file. Required columns:
// LATITUDE, LONGITUDE, COUNTYFP, GEOID. If counties is non-empty, rows
// whose COUNTYFP is not listed are skipped. A missing column or an
// unparseable coordinate is a load-time error.
func LoadCentroids(path string, counties []string) ([]Centroid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "points: open centroid file %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "points: read centroid header")
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	lastRequired := 0
	for _, required := range []string{colLatitude, colLongitude, colCountyFP, colGEOID} {
		i, ok := idx[required]
		if !ok {
			return nil, eris.Errorf("points: centroid file missing required column %s", strings.ToUpper(required))
		}
		if i > lastRequired {
			lastRequired = i
		}
	}

	wanted := make(map[string]bool, len(counties))
	for _, c := range counties {
		wanted[c] = true
	}

	var centroids []Centroid
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "points: read centroid row %d", row+1)
		}
		row++

		if len(record) <= lastRequired {
			return nil, eris.Errorf("points: centroid row %d: %d fields, need at least %d", row, len(record), lastRequired+1)
		}

		county := strings.TrimSpace(record[idx[colCountyFP]])
		if len(wanted) > 0 && !wanted[county] {
			continue
		}

		rawLat := strings.TrimSpace(record[idx[colLatitude]])
		rawLon := strings.TrimSpace(record[idx[colLongitude]])

		lat, err := strconv.ParseFloat(rawLat, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "points: centroid row %d: parse latitude %q", row, rawLat)
		}
		lon, err := strconv.ParseFloat(rawLon, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "points: centroid row %d: parse longitude %q", row, rawLon)
		}

		geoid := strings.TrimSpace(record[idx[colGEOID]])
		if geoid == "" {
			return nil, eris.Errorf("points: centroid row %d: empty GEOID", row)
		}

		centroids = append(centroids, Centroid{
			GEOID:    geoid,
			CountyFP: county,
			Lat:      lat,
			Lon:      lon,
			// Preserve the file's own text so the label is stable
			// across runs regardless of float formatting.
			Coord: fmt.Sprintf("%s, %s", rawLat, rawLon),
		})
	}

	zap.L().Info("loaded centroids", zap.String("path", path), zap.Int("count", len(centroids)))
	return centroids, nil
}

// LoadClinics reads clinic locations from a spreadsheet. The named column
// holds a combined "lat, lon" string per clinic. Rows that are entirely
// blank are skipped; a non-blank row whose coordinate cell does not parse
// as two comma-separated floats is an error.
func LoadClinics(path, sheetName, column string) ([]Clinic, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "points: open clinic file %s", path)
	}

	sheet, err := clinicSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("points: clinic sheet is empty")
	}

	colIdx := -1
	for i, cell := range sheet.Rows[0].Cells {
		if strings.EqualFold(strings.TrimSpace(cell.String()), column) {
			colIdx = i
			break
		}
	}
	if colIdx == -1 {
		return nil, eris.Errorf("points: clinic sheet missing column %q", column)
	}

	var clinics []Clinic
	for i, row := range sheet.Rows[1:] {
		if rowBlank(row) {
			continue
		}
		if colIdx >= len(row.Cells) {
			return nil, eris.Errorf("points: clinic row %d: no value in column %q", i+2, column)
		}

		raw := strings.TrimSpace(row.Cells[colIdx].String())
		lat, lon, err := SplitCoord(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "points: clinic row %d", i+2)
		}
		clinics = append(clinics, Clinic{Lat: lat, Lon: lon})
	}

	zap.L().Info("loaded clinics", zap.String("path", path), zap.Int("count", len(clinics)))
	return clinics, nil
}

// SplitCoord parses a combined "lat, lon" string into numeric parts.
func SplitCoord(coord string) (lat, lon float64, err error) {
	parts := strings.SplitN(coord, ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("points: invalid coordinate %q", coord)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "points: parse latitude of %q", coord)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "points: parse longitude of %q", coord)
	}
	return lat, lon, nil
}

func clinicSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("points: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("points: clinic file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowBlank(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}
