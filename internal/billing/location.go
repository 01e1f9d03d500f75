package billing

import "math"

// Location is a point in a named spatial domain.
type Location struct {
	Domain string
	X, Y, Z float64
}

// Distance is the contextual travel distance for teleport pricing. Valid
// is false when the endpoints are undefined or in different domains; the
// distance multiplier is then 1, never an error.
type Distance struct {
	Blocks float64
	Valid  bool
}

// NoDistance is the zero distance used by non-teleport decisions.
var NoDistance = Distance{}

// DistanceBetween computes the straight-line distance between two points.
func DistanceBetween(a, b *Location) Distance {
	if a == nil || b == nil || a.Domain != b.Domain {
		return Distance{}
	}
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return Distance{
		Blocks: math.Sqrt(dx*dx + dy*dy + dz*dz),
		Valid:  true,
	}
}

// multiplier returns the teleport cost multiplier: the distance in blocks
// rounded up, never below 1.
func (d Distance) multiplier() int64 {
	if !d.Valid {
		return 1
	}
	m := int64(math.Ceil(d.Blocks))
	if m < 1 {
		return 1
	}
	return m
}
