// models/calendar_annotation.go
package models

import "time"

const DATE_LAYOUT = "2006-01-02"

// Annotation kinds accepted by the dashboard's events form.
const (
	ANNOTATION_KIND_PROMOTION = "promotion"
	ANNOTATION_KIND_FESTIVAL  = "festival"
	ANNOTATION_KIND_SALE      = "sale"
)

// CalendarAnnotation is a promotional or festival date range. Both bounds are
// inclusive calendar dates formatted as YYYY-MM-DD.
type CalendarAnnotation struct {
	Label       string `json:"label" yaml:"label"`
	Kind        string `json:"kind,omitempty" yaml:"kind,omitempty"`
	StartDate   string `json:"start_date" yaml:"start_date"`
	EndDate     string `json:"end_date" yaml:"end_date"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks label, date format and ordering.
func (a CalendarAnnotation) Validate() error {
	if a.Label == "" {
		return NewConfigError("label", "must not be empty")
	}
	start, err := time.Parse(DATE_LAYOUT, a.StartDate)
	if err != nil {
		return NewConfigError("start_date", "invalid date %q", a.StartDate)
	}
	end, err := time.Parse(DATE_LAYOUT, a.EndDate)
	if err != nil {
		return NewConfigError("end_date", "invalid date %q", a.EndDate)
	}
	if end.Before(start) {
		return NewConfigError("end_date", "%s is before start_date %s", a.EndDate, a.StartDate)
	}
	switch a.Kind {
	case "", ANNOTATION_KIND_PROMOTION, ANNOTATION_KIND_FESTIVAL, ANNOTATION_KIND_SALE:
	default:
		return NewConfigError("kind", "unknown kind %q", a.Kind)
	}
	return nil
}

// Overlaps reports whether the annotation intersects the inclusive date range
// [from, to]. Dates are YYYY-MM-DD so lexical order is chronological.
func (a CalendarAnnotation) Overlaps(from, to string) bool {
	return a.StartDate <= to && a.EndDate >= from
}
