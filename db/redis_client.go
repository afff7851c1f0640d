package db

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// RedisClient defines the methods the DAOs rely on.
type RedisClient interface {
	Set(key, value string) error
	Get(key string) (string, error)
	MSet(values map[string]string) error
	RPush(key string, values ...string) error
	LRange(key string, start, stop int64) ([]string, error)
	GetContext() context.Context
	Ping() error
	Keys(pattern string) ([]string, error)
	Del(key string) error
}
