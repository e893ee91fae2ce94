// Package project loads a jitter-solve project from a CSV/JSON triad, mirroring the corpus's
// own project-manifest-plus-CSV-tables convention.
package project

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

// Manifest names the CSV tables a project's JSON file points to. DemFile is optional: it names a
// dem.LoadCSV-readable grid used only to synthesize anchor points (see internal/anchor), left
// empty for projects with no anchor constraint.
type Manifest struct {
	ProjectName string `json:"project_name"`
	SensorFile  string `json:"sensor_file"`
	PointFile   string `json:"point_file"`
	ObsFile     string `json:"obs_file"`
	DemFile     string `json:"dem_file,omitempty"`
}

// Project is a fully loaded set of sensors, points and observations.
type Project struct {
	Manifest     Manifest
	Sensors      []sensor.Sensor
	Points       []*model.TriangulatedPoint
	Observations []model.Observation
}

// Load reads a project manifest and its three companion CSV tables.
func Load(manifestPath string) (*Project, error) {
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, "project: read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "project: parse manifest")
	}
	baseDir := filepath.Dir(manifestPath)

	sensors, err := loadSensors(filepath.Join(baseDir, m.SensorFile))
	if err != nil {
		return nil, err
	}
	points, err := loadPoints(filepath.Join(baseDir, m.PointFile))
	if err != nil {
		return nil, err
	}
	obs, err := loadObservations(filepath.Join(baseDir, m.ObsFile))
	if err != nil {
		return nil, err
	}
	return &Project{Manifest: m, Sensors: sensors, Points: points, Observations: obs}, nil
}

// loadSensors reads a flat CSV describing one camera per row: id, kind, rows, cols, focal, then
// x, y, z of the position for kind "frame", or t0Pos, dtPos, numPos, t0Quat, dtQuat, numQuat for
// any other kind (loaded as linescan). Dense position/quaternion samples are
// not carried in this table; callers that need non-trivial pose tables construct sensors
// directly (this loader exists to make the CLI runnable end to end on flat inputs, not to
// replace a full camera-model importer, which is out of scope).
func loadSensors(path string) ([]sensor.Sensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "project: open sensor file")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // frame and linescan rows carry a different number of columns
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "project: read sensor file")
	}
	var sensors []sensor.Sensor
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rowsN, _ := strconv.Atoi(row[2])
		colsN, _ := strconv.Atoi(row[3])
		focal, _ := strconv.ParseFloat(row[4], 64)
		switch row[1] {
		case "frame":
			x, _ := strconv.ParseFloat(row[5], 64)
			y, _ := strconv.ParseFloat(row[6], 64)
			z, _ := strconv.ParseFloat(row[7], 64)
			sensors = append(sensors, &sensor.Frame{Rows_: rowsN, Cols_: colsN, Focal: focal, Position: r3.Vector{X: x, Y: y, Z: z}, Quaternion: model.Quaternion{W: 1}})
		default:
			t0Pos, _ := strconv.ParseFloat(row[5], 64)
			dtPos, _ := strconv.ParseFloat(row[6], 64)
			numPos, _ := strconv.Atoi(row[7])
			t0Quat, _ := strconv.ParseFloat(row[8], 64)
			dtQuat, _ := strconv.ParseFloat(row[9], 64)
			numQuat, _ := strconv.Atoi(row[10])
			l := &sensor.Linescan{
				Rows_: rowsN, Cols_: colsN, Focal: focal,
				T0Pos: t0Pos, DtPos: dtPos, Positions: make([]r3.Vector, numPos),
				T0Quat: t0Quat, DtQuat: dtQuat, Quaternions: make([]model.Quaternion, numQuat),
			}
			for q := range l.Quaternions {
				l.Quaternions[q] = model.Quaternion{W: 1}
			}
			sensors = append(sensors, l)
		}
	}
	return sensors, nil
}

func loadPoints(path string) ([]*model.TriangulatedPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "project: open point file")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // the trailing GCP-flag column is optional
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "project: read point file")
	}
	var pts []*model.TriangulatedPoint
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id, _ := strconv.Atoi(row[0])
		x, _ := strconv.ParseFloat(row[1], 64)
		y, _ := strconv.ParseFloat(row[2], 64)
		z, _ := strconv.ParseFloat(row[3], 64)
		class := model.Free
		if len(row) > 4 && row[4] == "1" {
			class = model.GCP
		}
		xyz := r3.Vector{X: x, Y: y, Z: z}
		pts = append(pts, &model.TriangulatedPoint{ID: id, XYZ: xyz, Initial: xyz, Class: class})
	}
	return pts, nil
}

func loadObservations(path string) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "project: open observation file")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // the trailing weight column is optional
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "project: read observation file")
	}
	var obs []model.Observation
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cid, _ := strconv.Atoi(row[0])
		pid, _ := strconv.Atoi(row[1])
		x, _ := strconv.ParseFloat(row[2], 64)
		y, _ := strconv.ParseFloat(row[3], 64)
		w := 1.0
		if len(row) > 4 {
			if parsed, err := strconv.ParseFloat(row[4], 64); err == nil {
				w = parsed
			}
		}
		obs = append(obs, model.Observation{CameraIndex: cid, PointIndex: pid, Pixel: r3.Vector{X: x, Y: y}, Weight: w})
	}
	return obs, nil
}
