package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

// ReadZonesFromFile loads zone definitions from a JSON or YAML file on disk.
func ReadZonesFromFile(filePath string) ([]zone.Zone, error) {
	var zones []zone.Zone
	if err := readStructured(filePath, &zones); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	return zones, nil
}

// ReadCalendarFromFile loads calendar annotations from a JSON or YAML file
// on disk and validates each one.
func ReadCalendarFromFile(filePath string) ([]models.CalendarAnnotation, error) {
	var annotations []models.CalendarAnnotation
	if err := readStructured(filePath, &annotations); err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	for i, a := range annotations {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("calendar entry %d in %q: %w", i, filePath, err)
		}
	}
	return annotations, nil
}

// readStructured decodes YAML for .yaml/.yml files and JSON otherwise.
func readStructured(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %q: %w", filePath, err)
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal yaml %q: %w", filePath, err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal json %q: %w", filePath, err)
		}
	}
	return nil
}
