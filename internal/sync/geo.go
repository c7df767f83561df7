package sync

import (
	"context"
	"errors"
	"time"

	"fieldflow/internal/model"
)

// ErrGeoUnavailable is the transient "no fix yet" failure. Loops skip the
// sample and try again on the next tick; it is never surfaced.
var ErrGeoUnavailable = errors.New("position temporarily unavailable")

// GeoOptions tunes a position request.
type GeoOptions struct {
	Timeout      time.Duration // per-request budget
	MaximumAge   time.Duration // accept a cached fix no older than this
	HighAccuracy bool
}

// DefaultGeoOptions matches the field profile: fresh high-accuracy fixes
// with a bounded wait.
func DefaultGeoOptions() GeoOptions {
	return GeoOptions{
		Timeout:      15 * time.Second,
		MaximumAge:   10 * time.Second,
		HighAccuracy: true,
	}
}

// Geolocator provides device positions. Platform adapters implement it;
// tests use a scripted stub.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts GeoOptions) (model.Geostamp, error)
}

// positioner adapts a Geolocator to the one-shot capture interface the
// lifecycle machine takes, pinning the request options.
type positioner struct {
	geo  Geolocator
	opts GeoOptions
}

func (p positioner) CurrentPosition(ctx context.Context) (model.Geostamp, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	return p.geo.CurrentPosition(ctx, p.opts)
}
