package entity

import (
	"strings"
	"time"
)

type DriverStatus string

const (
	DriverOffline   DriverStatus = "OFFLINE"
	DriverAvailable DriverStatus = "AVAILABLE"
	DriverBusy      DriverStatus = "BUSY"
)

// DriverLocation is the hot-cache entry: raw coordinates plus freshness, never a status.
// Revision is assigned by the hot store and strictly increases per driver,
// including across writes that share a timestamp.
type DriverLocation struct {
	DriverID   string    `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt time.Time `json:"observed_at"`
	Revision   int64     `json:"revision"`
}

// NextRevision follows the observation clock in microseconds and bumps past
// prev when the clock has not moved.
func NextRevision(prev int64, observedAt time.Time) int64 {
	if rev := observedAt.UnixMicro(); rev > prev {
		return rev
	}
	return prev + 1
}

func NewDriverLocation(driverID string, lat, lon float64, observedAt time.Time) (DriverLocation, error) {
	if strings.TrimSpace(driverID) == "" {
		return DriverLocation{}, NewValidationError("driver_id", "is required")
	}
	if err := (Coordinates{Lat: lat, Lon: lon}).Validate("position"); err != nil {
		return DriverLocation{}, err
	}
	if observedAt.IsZero() {
		return DriverLocation{}, NewValidationError("timestamp", "is required")
	}
	return DriverLocation{DriverID: driverID, Lat: lat, Lon: lon, ObservedAt: observedAt.UTC()}, nil
}

func (l DriverLocation) Position() Coordinates {
	return Coordinates{Lat: l.Lat, Lon: l.Lon}
}

func (l DriverLocation) Age(now time.Time) time.Duration {
	return now.Sub(l.ObservedAt)
}

// SamePosition is what the flush worker uses to skip unchanged drivers.
func (l DriverLocation) SamePosition(o DriverLocation) bool {
	return l.Lat == o.Lat && l.Lon == o.Lon
}

// LocationHistoryRecord is an immutable durable row written only by the flush worker.
type LocationHistoryRecord struct {
	DriverID   string
	Lat        float64
	Lon        float64
	RecordedAt time.Time
}

func (l DriverLocation) HistoryRecord() LocationHistoryRecord {
	return LocationHistoryRecord{DriverID: l.DriverID, Lat: l.Lat, Lon: l.Lon, RecordedAt: l.ObservedAt}
}

// DriverStatusInput gathers the facts status derivation reads at request time.
type DriverStatusInput struct {
	Location           *DriverLocation
	Active             bool
	HasActiveBooking   bool
	Now                time.Time
	StalenessThreshold time.Duration
}

// DeriveDriverStatus joins location freshness with the booking state.
func DeriveDriverStatus(in DriverStatusInput) DriverStatus {
	if !in.Active || in.Location == nil {
		return DriverOffline
	}
	if in.Location.Age(in.Now) > in.StalenessThreshold {
		return DriverOffline
	}
	if in.HasActiveBooking {
		return DriverBusy
	}
	return DriverAvailable
}
