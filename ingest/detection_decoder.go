package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mj-112358/winkfinal/models"
)

// ErrDecode marks payloads that are not a detection record.
var ErrDecode = errors.New("undecodable detection")

type detectionEnvelope struct {
	CameraID        string          `json:"camera_id"`
	ObjectID        json.RawMessage `json:"object_id"`
	Timestamp       json.RawMessage `json:"timestamp"`
	X               float64         `json:"x"`
	Y               float64         `json:"y"`
	DetectionWidth  float64         `json:"detection_width"`
	DetectionHeight float64         `json:"detection_height"`
}

// DecodeDetection parses one JSON detection record. The timestamp may be an
// RFC3339 string or Unix seconds; the object id may be a string or an
// integer track id.
func DecodeDetection(raw []byte) (models.DetectionEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env detectionEnvelope
	if err := dec.Decode(&env); err != nil {
		return models.DetectionEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return models.DetectionEvent{}, err
	}
	objectID, err := parseObjectID(env.ObjectID)
	if err != nil {
		return models.DetectionEvent{}, err
	}
	return models.DetectionEvent{
		CameraID:        strings.TrimSpace(env.CameraID),
		ObjectID:        objectID,
		Timestamp:       ts,
		X:               env.X,
		Y:               env.Y,
		DetectionWidth:  env.DetectionWidth,
		DetectionHeight: env.DetectionHeight,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("%w: timestamp missing", ErrDecode)
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(asString))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrDecode, asString)
		}
		return ts, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %s", ErrDecode, string(raw))
	}
	seconds, err := asNumber.Float64()
	if err != nil || seconds <= 0 {
		return time.Time{}, fmt.Errorf("%w: timestamp %s", ErrDecode, string(raw))
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

func parseObjectID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}
	return "", fmt.Errorf("%w: object_id %s", ErrDecode, string(raw))
}
