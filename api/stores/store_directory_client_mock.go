package stores

import (
	"context"
	"fmt"
)

// StoreDirectoryClientMock serves a static store to cameras mapping,
// usually read from the config file.
type StoreDirectoryClientMock struct {
	cameras map[string][]string
}

// NewStoreDirectoryClientMock creates a new instance of StoreDirectoryClientMock
func NewStoreDirectoryClientMock(cameras map[string][]string) *StoreDirectoryClientMock {
	return &StoreDirectoryClientMock{cameras: cameras}
}

func (c *StoreDirectoryClientMock) CamerasForStore(_ context.Context, storeID string) ([]string, error) {
	cameras, ok := c.cameras[storeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, storeID)
	}
	return append([]string(nil), cameras...), nil
}
