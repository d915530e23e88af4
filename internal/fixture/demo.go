// Package fixture ships a small demo city so the service answers optimize
// requests out of the box, before any tenant uploads a road network.
package fixture

import "fleetnav/internal/model"

// DemoGraph is a nine-node city. Node 0 is the depot; most streets are
// two-way, the ring road segment 7->8 is one-way.
func DemoGraph() model.GraphIn {
	return model.GraphIn{
		Name:     "demo-city",
		UnitRate: 1,
		Nodes: []model.NodeIn{
			{ID: 0, Name: "Depot"},
			{ID: 1, Name: "North Market"},
			{ID: 2, Name: "Old Town"},
			{ID: 3, Name: "Riverside"},
			{ID: 4, Name: "Industrial Park"},
			{ID: 5, Name: "East Gate"},
			{ID: 6, Name: "University"},
			{ID: 7, Name: "Harbor"},
			{ID: 8, Name: "Airport"},
		},
		Edges: []model.EdgeIn{
			{From: 0, To: 1, DistanceKm: 4, SpeedKph: 40, Congestion: 0.2},
			{From: 0, To: 2, DistanceKm: 3, SpeedKph: 30, Congestion: 0.5},
			{From: 1, To: 3, DistanceKm: 5, SpeedKph: 50},
			{From: 2, To: 3, DistanceKm: 4, SpeedKph: 40, Congestion: 0.3},
			{From: 2, To: 4, DistanceKm: 6, SpeedKph: 60},
			{From: 3, To: 5, DistanceKm: 7, SpeedKph: 50, Congestion: 0.1},
			{From: 4, To: 5, DistanceKm: 5, SpeedKph: 50},
			{From: 4, To: 7, DistanceKm: 8, SpeedKph: 70},
			{From: 5, To: 6, DistanceKm: 3, SpeedKph: 30, Congestion: 0.4},
			{From: 6, To: 8, DistanceKm: 9, SpeedKph: 80},
			{From: 7, To: 8, DistanceKm: 6, SpeedKph: 60, OneWay: true},
		},
	}
}

// DemoOrders covers the demo city with a mix of priorities and weights,
// including one order too heavy for the default vehicle.
func DemoOrders() []model.OrderIn {
	return []model.OrderIn{
		{ExternalRef: "demo-1", Destination: 3, WeightTons: 8, Priority: 2, Deadline: 1700000000},
		{ExternalRef: "demo-2", Destination: 5, WeightTons: 6, Priority: 3, Deadline: 1700003600},
		{ExternalRef: "demo-3", Destination: 6, WeightTons: 9, Priority: 1, Deadline: 1700007200},
		{ExternalRef: "demo-4", Destination: 8, WeightTons: 12, Priority: 2, Deadline: 1700010800},
		{ExternalRef: "demo-5", Destination: 4, WeightTons: 25, Priority: 1, Deadline: 1700014400},
		{ExternalRef: "demo-6", Destination: 1, WeightTons: 3, Priority: 2, Deadline: 1700018000},
	}
}
