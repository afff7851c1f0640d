// models/detection_event.go
package models

import (
	"fmt"
	"time"
)

// DetectionEvent is one per-frame object detection produced by the external
// detection pipeline. Coordinates are in detection-resolution pixels.
type DetectionEvent struct {
	CameraID        string    `json:"camera_id"`
	ObjectID        string    `json:"object_id"`
	Timestamp       time.Time `json:"timestamp"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	DetectionWidth  float64   `json:"detection_width"`
	DetectionHeight float64   `json:"detection_height"`
}

func (e *DetectionEvent) ToString() string {
	return fmt.Sprintf("Detection(camera=%s, object=%s, t=%s, x=%.1f, y=%.1f, res=%.0fx%.0f)",
		e.CameraID, e.ObjectID, e.Timestamp.Format(time.RFC3339Nano), e.X, e.Y, e.DetectionWidth, e.DetectionHeight)
}
