// models/dwell_session.go
package models

import (
	"fmt"
	"time"
)

// DwellSession is a continuous interval during which one object was present
// inside one zone. It is open until the tracker seals it.
type DwellSession struct {
	CameraID    string        `json:"camera_id"`
	ZoneID      string        `json:"zone_id"`
	ZoneVersion int           `json:"zone_version"`
	ObjectID    string        `json:"object_id"`
	EnterTime   time.Time     `json:"enter_time"`
	LastSeen    time.Time     `json:"last_seen"`
	Closed      bool          `json:"closed"`
	Duration    time.Duration `json:"duration"`
}

// Seal closes the session. Duration is last-seen minus enter time and never
// negative.
func (s *DwellSession) Seal() {
	s.Closed = true
	s.Duration = s.LastSeen.Sub(s.EnterTime)
	if s.Duration < 0 {
		s.Duration = 0
	}
}

// ExitTime is the instant the object was last seen inside the zone.
func (s *DwellSession) ExitTime() time.Time {
	return s.LastSeen
}

func (s *DwellSession) ToString() string {
	return fmt.Sprintf("DwellSession(camera=%s, zone=%s, object=%s, enter=%s, last_seen=%s, closed=%v)",
		s.CameraID, s.ZoneID, s.ObjectID, s.EnterTime.Format(time.RFC3339), s.LastSeen.Format(time.RFC3339), s.Closed)
}
