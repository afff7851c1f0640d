package stores

import "context"

// StoreDirectory is the external store and camera service.
type StoreDirectory interface {
	CamerasForStore(ctx context.Context, storeID string) ([]string, error)
}
