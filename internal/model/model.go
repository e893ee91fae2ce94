// Package model holds the data entities jitter-solve operates over: pose tables, sensors,
// triangulated points, observations and the rig configuration that ties them together.
package model

import (
	"github.com/golang/geo/r3"
)

// Quaternion is stored in (x, y, z, w) order throughout this repository, matching the wire
// format jitter-solve inherited from its camera model contract. Code that needs
// go.viam.com/rdk/spatialmath's (w, x, y, z) convention must convert explicitly at the boundary;
// see internal/geom.ToSpatial and internal/geom.FromSpatial.
type Quaternion struct {
	X, Y, Z, W float64
}

// PointClass distinguishes how a triangulated point participates in the solve.
type PointClass int

const (
	// Free points are ordinary triangulated tie points, refined during the solve.
	Free PointClass = iota
	// FromDEM points were seeded from a reference DEM height constraint.
	FromDEM
	// Anchor points are synthetic, DEM-derived, and held constant during the solve.
	Anchor
	// GCP points are ground control points, held constant during the solve.
	GCP
)

// TriangulatedPoint is one 3D ground point, optionally immutable.
type TriangulatedPoint struct {
	ID      int
	XYZ     r3.Vector
	Initial r3.Vector
	Class   PointClass
	Outlier bool
}

// Constant reports whether the point's coordinates must not move during the solve.
func (p *TriangulatedPoint) Constant() bool {
	return p.Class == Anchor || p.Class == GCP
}

// SensorKind distinguishes the two supported imaging geometries.
type SensorKind int

const (
	// Linescan sensors capture one line at a time along a uniform time grid; a single
	// linescan image couples to many (position, quaternion) samples.
	Linescan SensorKind = iota
	// Frame sensors capture an entire image from one pose.
	Frame
)

// Observation is a single pixel measurement of a triangulated point on a camera.
type Observation struct {
	CameraIndex int
	PointIndex  int
	Pixel       r3.Vector // Z unused; kept as r3.Vector to reuse geo helpers for pixel math.
	Weight      float64
	IsAnchor    bool
	Outlier     bool
}

// RigTransform is the rigid 6-DOF pose of a child sensor relative to the rig's reference sensor.
// Rotation is stored as an axis-angle vector (direction = axis, length = angle in radians);
// identity is the zero vector.
type RigTransform struct {
	AxisAngle   r3.Vector
	Translation r3.Vector
}

// IsIdentity reports whether the transform is the identity (used for the reference sensor).
func (t RigTransform) IsIdentity() bool {
	return t.AxisAngle == r3.Vector{} && t.Translation == r3.Vector{}
}
