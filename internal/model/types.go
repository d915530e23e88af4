package model

// Core domain types shared between the API layer and the stores.

// NodeIn is an externally supplied road-network node record.
type NodeIn struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// EdgeIn is an externally supplied road-segment record.
type EdgeIn struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	DistanceKm float64 `json:"distanceKm"`
	SpeedKph   float64 `json:"speedKph"`
	Congestion float64 `json:"congestion,omitempty"`
	OneWay     bool    `json:"oneway,omitempty"`
}

// GraphIn is an uploaded road-network snapshot.
type GraphIn struct {
	Name     string   `json:"name,omitempty"`
	UnitRate float64  `json:"unitRate,omitempty"`
	Nodes    []NodeIn `json:"nodes"`
	Edges    []EdgeIn `json:"edges"`
}

// GraphOut is a stored road-network snapshot with its identifier.
type GraphOut struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	GraphIn
}

type OrderIn struct {
	ExternalRef string  `json:"externalRef,omitempty"`
	Destination int     `json:"destination"`
	WeightTons  float64 `json:"weightTons"`
	Priority    int     `json:"priority,omitempty"`
	Deadline    int64   `json:"deadline,omitempty"`
}

type OrderOut struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenantId"`
	ExternalRef string  `json:"externalRef,omitempty"`
	Destination int     `json:"destination"`
	WeightTons  float64 `json:"weightTons"`
	Priority    int     `json:"priority"`
	Deadline    int64   `json:"deadline"`
	Status      string  `json:"status"`
}

// OptimizeRequest selects the inputs and policy for one optimization run.
type OptimizeRequest struct {
	TenantID        string  `json:"tenantId"`
	GraphID         string  `json:"graphId,omitempty"`
	Algorithm       string  `json:"algorithm,omitempty"` // dijkstra, astar
	CostKind        string  `json:"costKind,omitempty"`  // time, distance, monetary
	Hour            int     `json:"hour"`
	VehicleCapacity float64 `json:"vehicleCapacity,omitempty"`
	MaxVehicles     int     `json:"maxVehicles,omitempty"`
	Ordering        string  `json:"ordering,omitempty"` // destination, nearest
	Workers         int     `json:"workers,omitempty"`
}

// VehicleRoute is one vehicle's planned multi-stop route.
type VehicleRoute struct {
	Vehicle    int      `json:"vehicle"`
	Nodes      []int    `json:"nodes"`
	OrderIDs   []string `json:"orderIds"`
	DistanceKm float64  `json:"distanceKm"`
	TimeHours  float64  `json:"timeHours"`
	Cost       float64  `json:"cost"`
	ComputeMs  float64  `json:"computeMs"`
}

// UnassignedOrder reports an order that could not be dispatched, with a
// machine-readable reason (capacity, vehicle_limit).
type UnassignedOrder struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// RouteFailure reports a vehicle load whose route could not be completed.
type RouteFailure struct {
	Vehicle  int      `json:"vehicle"`
	OrderIDs []string `json:"orderIds"`
	Error    string   `json:"error"`
}

type FleetTotals struct {
	Vehicles   int     `json:"vehicles"`
	DistanceKm float64 `json:"distanceKm"`
	TimeHours  float64 `json:"timeHours"`
	Cost       float64 `json:"cost"`
}

// Plan is the persisted result of one optimization run.
type Plan struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	GraphID    string            `json:"graphId,omitempty"`
	Algorithm  string            `json:"algorithm"`
	CostKind   string            `json:"costKind"`
	Hour       int               `json:"hour"`
	Routes     []VehicleRoute    `json:"routes"`
	Unassigned []UnassignedOrder `json:"unassigned"`
	Failures   []RouteFailure    `json:"failures,omitempty"`
	Totals     FleetTotals       `json:"totals"`
	CreatedAt  string            `json:"createdAt"`
}

// PlanMetrics captures per-run analysis figures, keyed by algorithm.
type PlanMetrics struct {
	Algorithm  string  `json:"algorithm"`
	CostKind   string  `json:"costKind"`
	Routes     int     `json:"routes"`
	Legs       int     `json:"legs"`
	ComputeMs  float64 `json:"computeMs"`
	DistanceKm float64 `json:"distanceKm"`
	TimeHours  float64 `json:"timeHours"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
