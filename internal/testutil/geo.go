package testutil

import (
	"context"
	stdsync "sync"

	"fieldflow/internal/model"
	"fieldflow/internal/sync"
)

// FakeGeolocator returns a scripted position or error.
type FakeGeolocator struct {
	mu    stdsync.Mutex
	Pos   model.Geostamp
	Err   error
	Calls int
}

func (g *FakeGeolocator) CurrentPosition(ctx context.Context, opts sync.GeoOptions) (model.Geostamp, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.Err != nil {
		return model.Geostamp{}, g.Err
	}
	return g.Pos, nil
}

// CallCount returns how many position samples have been requested.
func (g *FakeGeolocator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls
}

// Set replaces the scripted position.
func (g *FakeGeolocator) Set(pos model.Geostamp) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Pos = pos
	g.Err = nil
}
