package services

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mj-112358/winkfinal/models"
)

// CalendarStore persists the annotation list.
type CalendarStore interface {
	SaveAnnotations(annotations []models.CalendarAnnotation) error
	LoadAnnotations() ([]models.CalendarAnnotation, bool, error)
}

// CalendarOverlayService joins promotional and festival ranges onto weeks.
// Readers load an immutable slice; writers swap in a new one.
type CalendarOverlayService struct {
	store CalendarStore

	writeMu     sync.Mutex
	annotations atomic.Pointer[[]models.CalendarAnnotation]
}

// NewCalendarOverlayService constructs an empty overlay. store may be nil.
func NewCalendarOverlayService(store CalendarStore) *CalendarOverlayService {
	cs := &CalendarOverlayService{store: store}
	empty := []models.CalendarAnnotation{}
	cs.annotations.Store(&empty)
	return cs
}

// Load replaces the calendar with the stored copy, or with seed when the
// store has none. Invalid stored annotations are skipped.
func (cs *CalendarOverlayService) Load(seed []models.CalendarAnnotation) error {
	if cs.store != nil {
		stored, found, err := cs.store.LoadAnnotations()
		if err != nil {
			return fmt.Errorf("[CalendarOverlayService] failed to load calendar: %w", err)
		}
		if found {
			valid := make([]models.CalendarAnnotation, 0, len(stored))
			for _, a := range stored {
				if err := a.Validate(); err != nil {
					log.Printf("[CalendarOverlayService] Skipping stored annotation %q: %v", a.Label, err)
					continue
				}
				valid = append(valid, a)
			}
			log.Printf("[CalendarOverlayService] Loaded %d stored annotations", len(valid))
			return cs.swap(valid, false)
		}
	}
	return cs.Replace(seed)
}

// Annotate returns every annotation overlapping the Monday to Sunday range
// of weekKey, in stored order. Overlapping annotations are all returned.
func (cs *CalendarOverlayService) Annotate(weekKey string) ([]models.CalendarAnnotation, error) {
	monday, sunday, err := models.WeekDates(weekKey)
	if err != nil {
		return nil, err
	}
	return cs.Between(monday, sunday), nil
}

// Between returns annotations overlapping the inclusive date range.
func (cs *CalendarOverlayService) Between(from, to string) []models.CalendarAnnotation {
	out := []models.CalendarAnnotation{}
	for _, a := range *cs.annotations.Load() {
		if a.Overlaps(from, to) {
			out = append(out, a)
		}
	}
	return out
}

// All returns a copy of the calendar.
func (cs *CalendarOverlayService) All() []models.CalendarAnnotation {
	current := *cs.annotations.Load()
	return append([]models.CalendarAnnotation{}, current...)
}

// ByLabel returns the first annotation with the label.
func (cs *CalendarOverlayService) ByLabel(label string) (models.CalendarAnnotation, bool) {
	for _, a := range *cs.annotations.Load() {
		if a.Label == label {
			return a, true
		}
	}
	return models.CalendarAnnotation{}, false
}

// Replace validates and installs a whole new calendar. Nothing changes if
// any annotation is invalid.
func (cs *CalendarOverlayService) Replace(annotations []models.CalendarAnnotation) error {
	for i, a := range annotations {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	return cs.swap(annotations, true)
}

// Add appends one annotation.
func (cs *CalendarOverlayService) Add(annotation models.CalendarAnnotation) error {
	if err := annotation.Validate(); err != nil {
		return err
	}
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	next := append(cs.All(), annotation)
	if err := cs.persist(next); err != nil {
		return err
	}
	cs.annotations.Store(&next)
	return nil
}

func (cs *CalendarOverlayService) swap(annotations []models.CalendarAnnotation, persist bool) error {
	next := append([]models.CalendarAnnotation{}, annotations...)
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	if persist {
		if err := cs.persist(next); err != nil {
			return err
		}
	}
	cs.annotations.Store(&next)
	return nil
}

func (cs *CalendarOverlayService) persist(annotations []models.CalendarAnnotation) error {
	if cs.store == nil {
		return nil
	}
	if err := cs.store.SaveAnnotations(annotations); err != nil {
		return fmt.Errorf("[CalendarOverlayService] failed to persist calendar: %w", err)
	}
	return nil
}
