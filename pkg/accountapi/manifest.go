package accountapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Manifest describes the embedded app to the wallet.
type Manifest struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// FetchManifest downloads and validates the manifest at url. A 404, an empty
// body or a manifest without a url yields ErrManifestNotFound.
func (c *Client) FetchManifest(ctx context.Context, url string) (*Manifest, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("accountapi: build manifest request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrManifestNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var m *Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("accountapi: decode manifest: %w", err)
	}

	if m == nil || m.URL == "" {
		return nil, ErrManifestNotFound
	}

	return m, nil
}
