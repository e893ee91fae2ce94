package dem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatDEM(height float64) *Interpolator {
	const n = 10
	heights := make([]float64, n*n)
	for i := range heights {
		heights[i] = height
	}
	return &Interpolator{
		LonMin: -5, LonStep: 1,
		LatMin: -5, LatStep: 1,
		Cols: n, Rows: n,
		Heights: heights,
	}
}

func TestSampleBilinearFlatSurface(t *testing.T) {
	d := flatDEM(42)
	h, err := d.Sample(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 42, h, 1e-9)
}

func TestSampleOffGridReturnsError(t *testing.T) {
	d := flatDEM(0)
	_, err := d.Sample(100, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOffGrid)
}

func TestCameraPixelToDEMConvergesOnFlatSurface(t *testing.T) {
	d := flatDEM(0)
	earthRadius := 6371000.0
	origin := XYZOfLonLatHeight(0, 0, 1000, earthRadius)
	// point straight down toward the surface from directly overhead
	dir := origin.Mul(-1)

	xyz, err := CameraPixelToDEM(d, origin, dir, earthRadius)
	require.NoError(t, err)

	lon, lat := LonLatOf(xyz)
	assert.InDelta(t, 0, lon, 1e-3)
	assert.InDelta(t, 0, lat, 1e-3)
}

func TestLoadCSVParsesGrid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.csv")
	content := "-5,1,-5,1,3,2\n10,20,30\n40,50,60\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	grid, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 3, grid.Cols)
	assert.Equal(t, 2, grid.Rows)
	assert.Equal(t, []float64{10, 20, 30, 40, 50, 60}, grid.Heights)

	h, err := grid.Sample(-5, -5)
	require.NoError(t, err)
	assert.InDelta(t, 10, h, 1e-9)
}

func TestLoadCSVRejectsMismatchedHeightCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	content := "-5,1,-5,1,3,2\n10,20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadCSV(path)
	require.Error(t, err)
}
