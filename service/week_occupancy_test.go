package services

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type plainEvent struct {
	at    time.Time
	delta int64
}

// scanPeak is the max prefix sum of events sorted by time, enters first.
func scanPeak(carry int64, events []plainEvent) int64 {
	sorted := append([]plainEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].at.Equal(sorted[j].at) {
			return sorted[i].at.Before(sorted[j].at)
		}
		return sorted[i].delta > sorted[j].delta
	})
	running, peak := carry, carry
	for _, e := range sorted {
		running += e.delta
		peak = max(peak, running)
	}
	return peak
}

func TestWeekOccupancy_MatchesSortedScan(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		occ := &weekOccupancy{carry: int64(rng.Intn(3))}
		var events []plainEvent
		for i := 0; i < 300; i++ {
			enter := t0.Add(time.Duration(rng.Intn(600)) * time.Second)
			exit := enter.Add(time.Duration(rng.Intn(120)) * time.Second)
			occ.enter(enter)
			occ.leave(exit)
			events = append(events, plainEvent{enter, 1}, plainEvent{exit, -1})
			assert.Equal(t, scanPeak(occ.carry, events), occ.peak(), "round %d after %d sessions", round, i+1)
		}
		assert.Equal(t, 600, occ.events())
	}
}

func TestWeekOccupancy_FloorAndEmpty(t *testing.T) {
	occ := &weekOccupancy{}
	assert.Equal(t, int64(0), occ.peak())

	occ.floor = 3
	occ.enter(t0)
	occ.leave(t0.Add(time.Second))
	assert.Equal(t, int64(3), occ.peak())

	occ.carry = 3
	assert.Equal(t, int64(4), occ.peak())
}
