package stores

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mj-112358/winkfinal/api"
)

var ErrUnknownStore = errors.New("unknown store")

// CamerasResponse is the body of GET /stores/{id}/cameras.
type CamerasResponse struct {
	StoreID string   `json:"store_id"`
	Cameras []Camera `json:"cameras"`
}

type Camera struct {
	CameraID string `json:"camera_id"`
	Name     string `json:"name"`
	RTSPURL  string `json:"rtsp_url,omitempty"`
	Active   bool   `json:"active"`
}

// StoreDirectoryClient embeds the common HTTPClient
type StoreDirectoryClient struct {
	*api.HTTPClient
}

// NewStoreDirectoryClient creates a new instance of StoreDirectoryClient
func NewStoreDirectoryClient(httpClient *api.HTTPClient) *StoreDirectoryClient {
	return &StoreDirectoryClient{HTTPClient: httpClient}
}

// CamerasForStore lists the ids of the store's active cameras.
func (c *StoreDirectoryClient) CamerasForStore(ctx context.Context, storeID string) ([]string, error) {
	var response CamerasResponse
	err := c.Request(ctx, "GET", "/stores/"+url.PathEscape(storeID)+"/cameras", nil, nil, &response)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStore, storeID)
		}
		return nil, err
	}

	ids := make([]string, 0, len(response.Cameras))
	for _, camera := range response.Cameras {
		if camera.Active {
			ids = append(ids, camera.CameraID)
		}
	}
	return ids, nil
}
