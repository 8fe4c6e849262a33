// Package integrations converts external stop lists into solve requests.
package integrations

import (
	"context"
	"io"

	"routeopt/internal/model"
)

// LocationSource reads stops from an external format. The first location
// returned is the depot.
type LocationSource interface {
	Name() string
	Fetch(ctx context.Context, r io.Reader) ([]model.Location, error)
}

// Request wraps fetched locations in a solve request with the depot at 0.
func Request(ctx context.Context, src LocationSource, r io.Reader, vehicles, capacity int) (model.SolveRequest, error) {
	locs, err := src.Fetch(ctx, r)
	if err != nil {
		return model.SolveRequest{}, err
	}
	depot := 0
	req := model.SolveRequest{Locations: locs, Depot: &depot}
	if vehicles > 0 {
		req.NumVehicles = &vehicles
	}
	if capacity > 0 {
		req.VehicleCapacity = &capacity
	}
	return req, nil
}
