package sync

import (
	"math"
	"time"

	"fieldflow/internal/model"
)

// Reporting thresholds. A sample is sent when it moved at least
// minDistance AND minInterval has passed, or unconditionally once it
// crosses forceDistance or forceInterval. Keeps the write rate low while
// a parked technician still pings a few times an hour.
const (
	minReportDistance   = 20.0 // meters
	minReportInterval   = 30 * time.Second
	forceReportDistance = 500.0 // meters
	forceReportInterval = 5 * time.Minute
)

const earthRadiusMeters = 6371000.0

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// locationThrottle decides which position samples are worth a network
// write. Not safe for concurrent use; owned by the location loop.
type locationThrottle struct {
	sent   bool
	last   model.Geostamp
	lastAt time.Time
}

// shouldSend reports whether pos warrants a report at time now, and
// records it as sent when it does.
func (t *locationThrottle) shouldSend(pos model.Geostamp, now time.Time) bool {
	if !t.sent {
		t.mark(pos, now)
		return true
	}

	dist := haversineMeters(t.last.Lat, t.last.Lng, pos.Lat, pos.Lng)
	elapsed := now.Sub(t.lastAt)

	if dist >= forceReportDistance || elapsed >= forceReportInterval {
		t.mark(pos, now)
		return true
	}
	if dist >= minReportDistance && elapsed >= minReportInterval {
		t.mark(pos, now)
		return true
	}
	return false
}

func (t *locationThrottle) mark(pos model.Geostamp, now time.Time) {
	t.sent = true
	t.last = pos
	t.lastAt = now
}
