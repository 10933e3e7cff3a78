package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/skyfence/internal/telemetry"
	"github.com/yegors/skyfence/pkg/logger"
)

// Client fetches telemetry snapshots and restricted zones from the
// upstream feed over HTTP
type Client struct {
	httpClient  *http.Client
	snapshotURL string
	zonesURL    string
	logger      *logger.Logger
}

// NewClient creates a new feed client
func NewClient(snapshotURL, zonesURL string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		snapshotURL: snapshotURL,
		zonesURL:    zonesURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("feed-client"),
	}
}

// FetchRecords performs a full snapshot fetch of telemetry records.
// A response without a drones key yields an empty, non-nil slice.
func (c *Client) FetchRecords(ctx context.Context) ([]telemetry.Record, error) {
	body, err := c.get(ctx, c.snapshotURL)
	if err != nil {
		return nil, err
	}

	var resp snapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot response: %w", err)
	}

	records := convertRecords(resp.Drones)
	c.logger.Debug("Fetched telemetry snapshot",
		logger.Int("record_count", len(records)),
	)
	return records, nil
}

// FetchZones fetches the restricted-zone set. Zones with a non-positive
// radius are dropped with a diagnostic; a response without a
// restricted_zones key yields an empty, non-nil slice.
func (c *Client) FetchZones(ctx context.Context) ([]telemetry.Zone, error) {
	body, err := c.get(ctx, c.zonesURL)
	if err != nil {
		return nil, err
	}

	var resp zonesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse zones response: %w", err)
	}

	zones := make([]telemetry.Zone, 0, len(resp.Zones))
	for _, w := range resp.Zones {
		zone := w.toZone()
		if zone.RadiusKm <= 0 {
			c.logger.Warn("Discarding zone with non-positive radius",
				logger.String("zone", zone.Name),
				logger.Float64("radius_km", zone.RadiusKm),
			)
			continue
		}
		zones = append(zones, zone)
	}

	c.logger.Debug("Fetched restricted zones",
		logger.Int("zone_count", len(zones)),
	)
	return zones, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
