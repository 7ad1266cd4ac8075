package checkpoint

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// naValue marks an unavailable travel time in the intermediate CSV.
const naValue = "NA"

// TravelTime is one centroid's minimum travel time. A nil Minutes means
// no candidate produced a transit route.
type TravelTime struct {
	GEOID   string
	Coord   string
	Minutes *float64
}

// WriteTravelTimes writes the intermediate CSV with columns
// geoid, coord, minimum_minutes. Minutes are formatted to one decimal so
// a write/read cycle reproduces values exactly.
func WriteTravelTimes(path string, rows []TravelTime) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: create csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"geoid", "coord", "minimum_minutes"}); err != nil {
		return eris.Wrap(err, "checkpoint: write csv header")
	}

	for _, row := range rows {
		min := naValue
		if row.Minutes != nil {
			min = strconv.FormatFloat(*row.Minutes, 'f', 1, 64)
		}
		if err := w.Write([]string{row.GEOID, row.Coord, min}); err != nil {
			return eris.Wrapf(err, "checkpoint: write csv row %s", row.GEOID)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "checkpoint: flush csv")
}

// ReadTravelTimes reads the intermediate CSV written by WriteTravelTimes.
func ReadTravelTimes(path string) ([]TravelTime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("checkpoint: csv is empty")
	}

	var rows []TravelTime
	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, eris.Errorf("checkpoint: csv row %d has %d fields, want 3", i+2, len(record))
		}

		row := TravelTime{GEOID: record[0], Coord: record[1]}
		if record[2] != naValue {
			v, err := strconv.ParseFloat(record[2], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "checkpoint: csv row %d: parse minutes %q", i+2, record[2])
			}
			row.Minutes = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
