package entity

import (
	"fmt"
	"math"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) Validate(field string) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return NewValidationError(field, "coordinates must be numbers")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return NewValidationError(field, "latitude must be within [-90, 90]")
	}
	if c.Lon < -180 || c.Lon > 180 {
		return NewValidationError(field, "longitude must be within [-180, 180]")
	}
	return nil
}

func (c Coordinates) Equal(o Coordinates) bool {
	return c.Lat == o.Lat && c.Lon == o.Lon
}

const earthRadiusKm = 6371.0088

// DistanceKm is the great-circle distance to o.
func (c Coordinates) DistanceKm(o Coordinates) float64 {
	lat1, lat2 := c.Lat*math.Pi/180, o.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (o.Lon - c.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", c.Lat, c.Lon)
}

// BoundingBox is the operating region; routing outside of it is refused.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"time_start"`
	End   time.Time `json:"time_end"`
}

func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if start.IsZero() || end.IsZero() {
		return TimeWindow{}, NewValidationError("time window", "time_start and time_end are required")
	}
	if !start.Before(end) {
		return TimeWindow{}, NewValidationError("time window", "time_start must be before time_end")
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps treats touching intervals (a.End == b.Start) as disjoint.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Route is what the routing engine computed between pickup and dropoff.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Geometry        string  `json:"geometry,omitempty"`
}
