package api

import (
	"fmt"

	"fleetnav/internal/model"
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	switch req.Algorithm {
	case "", "dijkstra", "astar":
	default:
		return fmt.Errorf("invalid algorithm: %s (allowed: dijkstra, astar)", req.Algorithm)
	}
	switch req.CostKind {
	case "", "time", "distance", "monetary":
	default:
		return fmt.Errorf("invalid costKind: %s (allowed: time, distance, monetary)", req.CostKind)
	}
	if req.Hour < 0 || req.Hour > 23 {
		return fmt.Errorf("hour must be in [0,23], got %d", req.Hour)
	}
	if req.VehicleCapacity < 0 {
		return fmt.Errorf("vehicleCapacity must be >= 0")
	}
	if req.MaxVehicles < 0 {
		return fmt.Errorf("maxVehicles must be >= 0")
	}
	switch req.Ordering {
	case "", "destination", "nearest":
	default:
		return fmt.Errorf("invalid ordering: %s (allowed: destination, nearest)", req.Ordering)
	}
	if req.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}
