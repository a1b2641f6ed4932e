package pose

import "gonum.org/v1/gonum/spatial/r2"

// Zone is a region of the frame that certain body parts must stay out of.
// Coordinates are normalized like landmarks.
type Zone interface {
	Contains(p r2.Vec) bool
}

// Rect is an axis-aligned rectangle. Its edges belong to it.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r or on its boundary.
func (r Rect) Contains(p r2.Vec) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Circle is a disc centred on (X, Y). Its boundary belongs to it.
type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p lies inside c or on its boundary.
func (c Circle) Contains(p r2.Vec) bool {
	return r2.Norm(r2.Sub(p, r2.Vec{X: c.X, Y: c.Y})) <= c.Radius
}

// Violation records one body part found inside one zone. ZoneIndex is the
// zone's position in the slice passed to CheckZones.
type Violation struct {
	BodyPart  string `json:"body_part"`
	ZoneIndex int    `json:"zone_index"`
}

// CheckZones tests each body part against each zone. Parts that are absent
// or seen with visibility below floor are skipped, so a low-confidence
// detection never raises an alarm. A NaN visibility reads as 0. The result
// is built fresh on every call and is empty, not nil, when nothing is
// violated.
func CheckZones(f Frame, zones []Zone, parts []BodyPart, floor float64) []Violation {
	out := make([]Violation, 0)
	if len(zones) == 0 {
		return out
	}

	for _, part := range parts {
		lm, ok := f.At(part.Landmark)
		if !ok || f.Visibility(part.Landmark) < floor {
			continue
		}
		p := lm.Vec()
		for i, z := range zones {
			if z != nil && z.Contains(p) {
				out = append(out, Violation{BodyPart: part.Name, ZoneIndex: i})
			}
		}
	}
	return out
}
