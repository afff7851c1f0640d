package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

const DEFAULT_SPIKE_BASELINE_WEEKS = 4

// MIN_SPIKE_BASELINE_POINTS is the fewest baseline weeks with data needed
// to score a week.
const MIN_SPIKE_BASELINE_POINTS = 2

var ErrNoBaseline = errors.New("no baseline data")

// BucketLister lists every bucket of a zone, ordered by week.
type BucketLister interface {
	BucketReader
	Buckets(zoneID string) []insights.InsightBucket
}

// SpikeDetectorService flags weeks whose visit count sits well above the
// trailing weeks.
type SpikeDetectorService struct {
	buckets       BucketLister
	baselineWeeks int
}

func NewSpikeDetectorService(buckets BucketLister, baselineWeeks int) *SpikeDetectorService {
	if baselineWeeks <= 0 {
		baselineWeeks = DEFAULT_SPIKE_BASELINE_WEEKS
	}
	return &SpikeDetectorService{buckets: buckets, baselineWeeks: baselineWeeks}
}

// Detect scores one week against the preceding baseline weeks that have
// data. A week without a bucket scores as zero visits.
func (sd *SpikeDetectorService) Detect(zoneID, weekKey string) (insights.Spike, error) {
	if _, _, err := models.ParseWeekKey(weekKey); err != nil {
		return insights.Spike{}, err
	}

	var baselineWeeks []string
	var values []float64
	for i := sd.baselineWeeks; i >= 1; i-- {
		key, err := models.ShiftWeekKey(weekKey, -i)
		if err != nil {
			return insights.Spike{}, err
		}
		if b, ok := sd.buckets.WeeklyInsights(zoneID, key); ok {
			baselineWeeks = append(baselineWeeks, key)
			values = append(values, float64(b.VisitCount))
		}
	}
	if len(values) < MIN_SPIKE_BASELINE_POINTS {
		return insights.Spike{}, fmt.Errorf("%w: zone=%s week=%s", ErrNoBaseline, zoneID, weekKey)
	}

	var value float64
	if b, ok := sd.buckets.WeeklyInsights(zoneID, weekKey); ok {
		value = float64(b.VisitCount)
	}
	mean, std := meanStd(values)

	magnitudeBase := mean
	if magnitudeBase < 1 {
		magnitudeBase = 1
	}
	return insights.Spike{
		ZoneID:        zoneID,
		WeekKey:       weekKey,
		Value:         value,
		BaselineMean:  mean,
		BaselineStd:   std,
		BaselineWeeks: baselineWeeks,
		IsSpike:       value > mean+2*std,
		Severity:      spikeSeverity(value, mean, std),
		Magnitude:     value / magnitudeBase,
	}, nil
}

// Scan scores every week of the zone that has a baseline and returns only
// the spikes.
func (sd *SpikeDetectorService) Scan(zoneID string) []insights.Spike {
	spikes := []insights.Spike{}
	for _, b := range sd.buckets.Buckets(zoneID) {
		spike, err := sd.Detect(zoneID, b.WeekKey)
		if err != nil {
			continue
		}
		if spike.IsSpike {
			spikes = append(spikes, spike)
		}
	}
	return spikes
}

func spikeSeverity(value, mean, std float64) string {
	if std == 0 {
		return insights.SEVERITY_MEDIUM
	}
	z := math.Abs(value-mean) / std
	switch {
	case z > 3:
		return insights.SEVERITY_CRITICAL
	case z > 2:
		return insights.SEVERITY_HIGH
	case z > 1:
		return insights.SEVERITY_MEDIUM
	default:
		return insights.SEVERITY_LOW
	}
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
