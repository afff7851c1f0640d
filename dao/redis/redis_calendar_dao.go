package redis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/models"
)

const CALENDAR_KEY = "calendar_v1"

// RedisCalendarDAO stores the whole annotation list under one key.
type RedisCalendarDAO struct {
	client db.RedisClient
}

func NewRedisCalendarDAO(client db.RedisClient) *RedisCalendarDAO {
	return &RedisCalendarDAO{client: client}
}

// SaveAnnotations overwrites the stored calendar.
func (dao *RedisCalendarDAO) SaveAnnotations(annotations []models.CalendarAnnotation) error {
	data, err := json.Marshal(annotations)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar: %w", err)
	}
	if err := dao.client.Set(CALENDAR_KEY, string(data)); err != nil {
		return fmt.Errorf("failed to set calendar in redis: %w", err)
	}
	return nil
}

// LoadAnnotations returns the stored calendar. found is false when nothing
// was ever saved.
func (dao *RedisCalendarDAO) LoadAnnotations() (annotations []models.CalendarAnnotation, found bool, err error) {
	str, err := dao.client.Get(CALENDAR_KEY)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get calendar from redis: %w", err)
	}
	if err := json.Unmarshal([]byte(str), &annotations); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal calendar: %w", err)
	}
	return annotations, true, nil
}
