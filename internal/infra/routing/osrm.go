package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// OSRMClient talks to an OSRM HTTP server's route service.
type OSRMClient struct {
	baseURL string
	profile string
	http    *http.Client
}

func NewOSRMClient(baseURL string, httpClient *http.Client) *OSRMClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OSRMClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		profile: "driving",
		http:    httpClient,
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

func (c *OSRMClient) Route(ctx context.Context, pickup, dropoff entity.Coordinates) (entity.Route, error) {
	// OSRM takes lon,lat pairs.
	coords := fmt.Sprintf("%f,%f;%f,%f", pickup.Lon, pickup.Lat, dropoff.Lon, dropoff.Lat)
	u := fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, c.profile, coords, url.Values{
		"overview":     {"simplified"},
		"geometries":   {"polyline"},
		"alternatives": {"false"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.Route{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return entity.Route{}, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return entity.Route{}, fmt.Errorf("osrm read: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return entity.Route{}, fmt.Errorf("osrm: status %d", resp.StatusCode)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return entity.Route{}, fmt.Errorf("osrm decode (status %d): %w", resp.StatusCode, err)
	}
	switch out.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return entity.Route{}, &entity.RouteNotFoundError{Pickup: pickup, Dropoff: dropoff}
	default:
		return entity.Route{}, fmt.Errorf("osrm: %s: %s", out.Code, out.Message)
	}
	if len(out.Routes) == 0 {
		return entity.Route{}, &entity.RouteNotFoundError{Pickup: pickup, Dropoff: dropoff}
	}
	r := out.Routes[0]
	return entity.Route{DistanceMeters: r.Distance, DurationSeconds: r.Duration, Geometry: r.Geometry}, nil
}
