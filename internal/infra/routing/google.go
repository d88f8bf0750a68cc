package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"googlemaps.github.io/maps"
)

// GoogleClient resolves routes with the Google Directions API.
type GoogleClient struct {
	client *maps.Client
}

func NewGoogleClient(apiKey string, opts ...maps.ClientOption) (*GoogleClient, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

func (g *GoogleClient) Route(ctx context.Context, pickup, dropoff entity.Coordinates) (entity.Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      latLng(pickup),
		Destination: latLng(dropoff),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		if noPath(err) {
			return entity.Route{}, &entity.RouteNotFoundError{Pickup: pickup, Dropoff: dropoff}
		}
		return entity.Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return entity.Route{}, &entity.RouteNotFoundError{Pickup: pickup, Dropoff: dropoff}
	}

	var out entity.Route
	for _, leg := range routes[0].Legs {
		out.DistanceMeters += float64(leg.Distance.Meters)
		out.DurationSeconds += leg.Duration.Seconds()
	}
	out.Geometry = routes[0].OverviewPolyline.Points
	return out, nil
}

func latLng(c entity.Coordinates) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lon)
}

// The client reports API statuses only through the error text.
func noPath(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ZERO_RESULTS") || strings.Contains(msg, "NOT_FOUND")
}
