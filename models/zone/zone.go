package zone

import (
	"fmt"
	"time"

	"github.com/mj-112358/winkfinal/models"
)

const MIN_ZONE_VERTICES = 3

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zone is one immutable version of an operator-drawn polygon over a camera's
// reference screenshot. Vertices are in reference-resolution pixels.
type Zone struct {
	ID              string    `json:"zone_id" yaml:"zone_id"`
	CameraID        string    `json:"camera_id" yaml:"camera_id"`
	Name            string    `json:"name" yaml:"name"`
	Kind            string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Vertices        []Point   `json:"vertices" yaml:"vertices"`
	ReferenceWidth  float64   `json:"reference_width" yaml:"reference_width"`
	ReferenceHeight float64   `json:"reference_height" yaml:"reference_height"`
	Version         int       `json:"version" yaml:"-"`
	Active          bool      `json:"active" yaml:"-"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
}

// Validate enforces the registration invariants.
func (z *Zone) Validate() error {
	if z.CameraID == "" {
		return models.NewConfigError("camera_id", "must not be empty")
	}
	if len(z.Vertices) < MIN_ZONE_VERTICES {
		return models.NewConfigError("vertices", "polygon must have at least %d points, got %d", MIN_ZONE_VERTICES, len(z.Vertices))
	}
	if z.ReferenceWidth <= 0 || z.ReferenceHeight <= 0 {
		return models.NewConfigError("reference", "reference size must be positive, got %gx%g", z.ReferenceWidth, z.ReferenceHeight)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a stored version.
func (z Zone) Clone() Zone {
	out := z
	out.Vertices = append([]Point(nil), z.Vertices...)
	return out
}

func (z *Zone) ToString() string {
	return fmt.Sprintf("Zone(id=%s, camera=%s, name=%s, version=%d, vertices=%d, ref=%gx%g, active=%v)",
		z.ID, z.CameraID, z.Name, z.Version, len(z.Vertices), z.ReferenceWidth, z.ReferenceHeight, z.Active)
}
