package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

func TestSpikeDetector_Detect(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	// W10..W13 baseline of 8, 12, 8, 12 visits; W14 jumps to 30.
	for i, visits := range []int{8, 12, 8, 12, 30} {
		ingestVisits(t, agg, "z1", t0.AddDate(0, 0, 7*i), visits, time.Second)
	}
	detector := NewSpikeDetectorService(agg, 4)

	spike, err := detector.Detect("z1", "2024-W14")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-W10", "2024-W11", "2024-W12", "2024-W13"}, spike.BaselineWeeks)
	assert.Equal(t, 10.0, spike.BaselineMean)
	assert.Equal(t, 2.0, spike.BaselineStd)
	assert.True(t, spike.IsSpike)
	assert.Equal(t, insights.SEVERITY_CRITICAL, spike.Severity)
	assert.Equal(t, 3.0, spike.Magnitude)

	spikes := detector.Scan("z1")
	require.Len(t, spikes, 1)
	assert.Equal(t, "2024-W14", spikes[0].WeekKey)
}

func TestSpikeDetector_Severity(t *testing.T) {
	tests := []struct {
		value, mean, std float64
		want             string
	}{
		{10, 10, 0, insights.SEVERITY_MEDIUM},
		{17, 10, 2, insights.SEVERITY_CRITICAL},
		{15, 10, 2, insights.SEVERITY_HIGH},
		{13, 10, 2, insights.SEVERITY_MEDIUM},
		{11, 10, 2, insights.SEVERITY_LOW},
		{3, 10, 2, insights.SEVERITY_CRITICAL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spikeSeverity(tt.value, tt.mean, tt.std), "value=%v", tt.value)
	}
}

func TestSpikeDetector_NoBaseline(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	ingestVisits(t, agg, "z1", t0, 3, time.Second)
	detector := NewSpikeDetectorService(agg, 0)

	_, err := detector.Detect("z1", "2024-W10")
	assert.ErrorIs(t, err, ErrNoBaseline)
	_, err = detector.Detect("z1", "bad")
	assert.ErrorIs(t, err, models.ErrInvalidWeekKey)
	assert.Empty(t, detector.Scan("z1"))
}
