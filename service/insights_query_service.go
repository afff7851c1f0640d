package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
	"github.com/mj-112358/winkfinal/models/zone"
)

// MAX_QUERY_WEEKS bounds a From/To range.
const MAX_QUERY_WEEKS = 104

var ErrInvalidQuery = errors.New("invalid insights query")

// StoreDirectory resolves a store to its cameras.
type StoreDirectory interface {
	CamerasForStore(ctx context.Context, storeID string) ([]string, error)
}

// ZoneCatalog lists every zone of a camera, deactivated ones included.
type ZoneCatalog interface {
	AllZonesForCamera(cameraID string) []zone.Zone
}

// BucketReader reads weekly buckets.
type BucketReader interface {
	WeeklyInsights(zoneID, weekKey string) (insights.InsightBucket, bool)
}

// WeekAnnotator returns the calendar annotations of a week.
type WeekAnnotator interface {
	Annotate(weekKey string) ([]models.CalendarAnnotation, error)
}

// InsightsQueryService answers dashboard queries by joining buckets with the
// calendar at read time.
type InsightsQueryService struct {
	stores   StoreDirectory
	zones    ZoneCatalog
	buckets  BucketReader
	calendar WeekAnnotator
	loc      *time.Location
}

func NewInsightsQueryService(
	stores StoreDirectory,
	zones ZoneCatalog,
	buckets BucketReader,
	calendar WeekAnnotator,
	loc *time.Location,
) *InsightsQueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightsQueryService{
		stores:   stores,
		zones:    zones,
		buckets:  buckets,
		calendar: calendar,
		loc:      loc,
	}
}

// Query returns one row per (zone, week) that has a bucket, ordered by
// camera, zone and week. Weeks without activity are omitted.
func (qs *InsightsQueryService) Query(ctx context.Context, q insights.InsightsQuery) ([]insights.ZoneWeekInsight, error) {
	weeks, err := qs.weeks(q)
	if err != nil {
		return nil, err
	}
	cameras, err := qs.cameras(ctx, q)
	if err != nil {
		return nil, err
	}

	annotations := make(map[string][]models.CalendarAnnotation, len(weeks))
	for _, week := range weeks {
		a, err := qs.calendar.Annotate(week)
		if err != nil {
			return nil, err
		}
		annotations[week] = a
	}

	rows := []insights.ZoneWeekInsight{}
	zoneFound := q.ZoneID == ""
	for _, cameraID := range cameras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, z := range qs.zones.AllZonesForCamera(cameraID) {
			if q.ZoneID != "" && z.ID != q.ZoneID {
				continue
			}
			zoneFound = true
			for _, week := range weeks {
				b, ok := qs.buckets.WeeklyInsights(z.ID, week)
				if !ok {
					continue
				}
				rows = append(rows, toZoneWeekInsight(cameraID, z, b, annotations[week]))
			}
		}
	}
	if !zoneFound {
		return nil, fmt.Errorf("%w: zone=%s", ErrZoneNotFound, q.ZoneID)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CameraID != rows[j].CameraID {
			return rows[i].CameraID < rows[j].CameraID
		}
		if rows[i].ZoneID != rows[j].ZoneID {
			return rows[i].ZoneID < rows[j].ZoneID
		}
		return rows[i].WeekKey < rows[j].WeekKey
	})
	return rows, nil
}

func (qs *InsightsQueryService) weeks(q insights.InsightsQuery) ([]string, error) {
	if q.WeekKey != "" {
		if _, _, err := models.ParseWeekKey(q.WeekKey); err != nil {
			return nil, err
		}
		return []string{q.WeekKey}, nil
	}
	if q.From.IsZero() || q.To.IsZero() {
		return nil, fmt.Errorf("%w: week or from/to required", ErrInvalidQuery)
	}
	if q.To.Before(q.From) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidQuery)
	}
	if q.To.Sub(q.From) > time.Duration(MAX_QUERY_WEEKS)*7*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d weeks", ErrInvalidQuery, MAX_QUERY_WEEKS)
	}
	return models.WeekKeysBetween(q.From, q.To, qs.loc), nil
}

func (qs *InsightsQueryService) cameras(ctx context.Context, q insights.InsightsQuery) ([]string, error) {
	if q.CameraID != "" {
		return []string{q.CameraID}, nil
	}
	if q.StoreID == "" {
		return nil, fmt.Errorf("%w: store_id or camera_id required", ErrInvalidQuery)
	}
	cameras, err := qs.stores.CamerasForStore(ctx, q.StoreID)
	if err != nil {
		return nil, fmt.Errorf("[InsightsQueryService] failed to resolve store %s: %w", q.StoreID, err)
	}
	return cameras, nil
}

func toZoneWeekInsight(
	cameraID string,
	z zone.Zone,
	b insights.InsightBucket,
	annotations []models.CalendarAnnotation,
) insights.ZoneWeekInsight {
	return insights.ZoneWeekInsight{
		CameraID:          cameraID,
		ZoneID:            z.ID,
		ZoneName:          z.Name,
		WeekKey:           b.WeekKey,
		VisitCount:        b.VisitCount,
		TotalDwellSeconds: b.TotalDwell.Seconds(),
		AvgDwellSeconds:   b.AverageDwell().Seconds(),
		PeakOccupancy:     b.PeakOccupancy,
		Saturated:         b.Saturated,
		Annotations:       annotations,
	}
}
