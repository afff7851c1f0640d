// Package geometry maps detections into a zone's reference resolution and
// classifies them against the zone polygon.
package geometry

import (
	"math"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

// DEFAULT_EDGE_EPSILON is the distance in reference pixels under which a
// point counts as lying on an edge.
const DEFAULT_EDGE_EPSILON = 1e-9

// Resolver matches detection events against zones.
type Resolver struct {
	epsilon float64
}

// NewResolver creates a Resolver. A non-positive epsilon uses the default.
func NewResolver(epsilon float64) *Resolver {
	if epsilon <= 0 {
		epsilon = DEFAULT_EDGE_EPSILON
	}
	return &Resolver{epsilon: epsilon}
}

// Resolve rescales the event into the zone's reference resolution and
// reports whether it falls inside the polygon, edges included. Events with
// a non-positive detection resolution never match.
func (r *Resolver) Resolve(event models.DetectionEvent, z zone.Zone) bool {
	p, ok := Scale(event, z)
	if !ok {
		return false
	}
	return ContainsWithEpsilon(z.Vertices, p, r.epsilon)
}

// Scale applies independent per-axis factors refW/detW and refH/detH.
func Scale(event models.DetectionEvent, z zone.Zone) (zone.Point, bool) {
	if event.DetectionWidth <= 0 || event.DetectionHeight <= 0 {
		return zone.Point{}, false
	}
	return zone.Point{
		X: ScaleAxis(event.X, z.ReferenceWidth, event.DetectionWidth),
		Y: ScaleAxis(event.Y, z.ReferenceHeight, event.DetectionHeight),
	}, true
}

// ScaleAxis converts one coordinate from detection to reference pixels.
func ScaleAxis(v, reference, detection float64) float64 {
	return v * (reference / detection)
}

// Contains is ContainsWithEpsilon with the default epsilon.
func Contains(polygon []zone.Point, p zone.Point) bool {
	return ContainsWithEpsilon(polygon, p, DEFAULT_EDGE_EPSILON)
}

// ContainsWithEpsilon runs a bounding-box pre-check, then a boundary
// inclusive even-odd ray cast. Self-intersecting polygons are classified
// as-is by the even-odd rule.
func ContainsWithEpsilon(polygon []zone.Point, p zone.Point, epsilon float64) bool {
	if len(polygon) < zone.MIN_ZONE_VERTICES {
		return false
	}
	min, max := Bounds(polygon)
	if p.X < min.X-epsilon || p.X > max.X+epsilon || p.Y < min.Y-epsilon || p.Y > max.Y+epsilon {
		return false
	}

	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := polygon[j], polygon[i]
		if OnSegment(a, b, p, epsilon) {
			return true
		}
		if (b.Y > p.Y) != (a.Y > p.Y) {
			xCross := (a.X-b.X)*(p.Y-b.Y)/(a.Y-b.Y) + b.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// OnSegment reports whether p lies on segment ab within epsilon.
func OnSegment(a, b, p zone.Point, epsilon float64) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	length := math.Hypot(b.X-a.X, b.Y-a.Y)
	if length == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y) <= epsilon
	}
	if math.Abs(cross)/length > epsilon {
		return false
	}
	return p.X >= math.Min(a.X, b.X)-epsilon && p.X <= math.Max(a.X, b.X)+epsilon &&
		p.Y >= math.Min(a.Y, b.Y)-epsilon && p.Y <= math.Max(a.Y, b.Y)+epsilon
}

// Bounds returns the axis-aligned extent of the polygon.
func Bounds(polygon []zone.Point) (zone.Point, zone.Point) {
	if len(polygon) == 0 {
		return zone.Point{}, zone.Point{}
	}
	min, max := polygon[0], polygon[0]
	for _, v := range polygon[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
	}
	return min, max
}
