package dem

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// LoadCSV reads a DEM grid from the flat CSV convention internal/project uses for sensor/point/
// observation tables: a header row of lonMin,lonStep,latMin,latStep,cols,rows followed by one row
// of cols height values per grid row.
func LoadCSV(path string) (*Interpolator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dem: open file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // the header row and the per-line height rows have different widths
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dem: read file")
	}
	if len(rows) < 2 {
		return nil, errors.New("dem: file has no height rows")
	}

	header := rows[0]
	if len(header) < 6 {
		return nil, errors.New("dem: malformed header row")
	}
	lonMin, _ := strconv.ParseFloat(header[0], 64)
	lonStep, _ := strconv.ParseFloat(header[1], 64)
	latMin, _ := strconv.ParseFloat(header[2], 64)
	latStep, _ := strconv.ParseFloat(header[3], 64)
	cols, _ := strconv.Atoi(header[4])
	gridRows, _ := strconv.Atoi(header[5])

	heights := make([]float64, 0, cols*gridRows)
	for _, row := range rows[1:] {
		for _, cell := range row {
			h, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrap(err, "dem: parse height")
			}
			heights = append(heights, h)
		}
	}
	if len(heights) != cols*gridRows {
		return nil, errors.Errorf("dem: expected %d heights, got %d", cols*gridRows, len(heights))
	}

	return &Interpolator{
		LonMin: lonMin, LonStep: lonStep,
		LatMin: latMin, LatStep: latStep,
		Cols: cols, Rows: gridRows,
		Heights: heights,
	}, nil
}
