package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedBaseline(t *testing.T) {
	o := Default()
	assert.Equal(t, 10.0, o.MaxInitReprojError)
	assert.Equal(t, 0.5, o.RobustThreshold)
	assert.Equal(t, 1.0, o.QuatNormWeight)
	assert.Equal(t, 0.0, o.RotationWeight)
	assert.Equal(t, 500, o.NumIterations)
}

func TestRegisterFlagsSeedsDefaultsAndBindsOverrides(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o := RegisterFlags(fs)

	assert.Equal(t, Default().RobustThreshold, o.RobustThreshold)

	require := func(err error) {
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
	}
	require(fs.Parse([]string{"-robust-threshold=1.25", "-num-iterations=10"}))

	assert.Equal(t, 1.25, o.RobustThreshold)
	assert.Equal(t, 10, o.NumIterations)
}
