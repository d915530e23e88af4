// Package assign partitions delivery orders across capacity-constrained
// vehicles. The packing is greedy, not optimal: orders are taken in urgency
// order and a new vehicle is opened whenever the current one would overflow.
package assign

import (
	"sort"

	"fleetnav/internal/graph"
)

type Order struct {
	ID          string
	Destination graph.NodeID
	Weight      float64 // tons
	Priority    int     // higher is more urgent
	Deadline    int64   // orderable; smaller is sooner
}

// Load is the ordered set of orders assigned to one vehicle.
type Load struct {
	Orders      []Order
	TotalWeight float64
}

// Reason codes for orders that could not be dispatched. They are reported,
// never dropped, and never abort the run.
type Reason string

const (
	ReasonCapacity     Reason = "capacity"      // single order heavier than any vehicle
	ReasonVehicleLimit Reason = "vehicle_limit" // load truncated by the fleet cap
)

type Unassigned struct {
	Order  Order
	Reason Reason
}

// Assign packs orders into vehicle loads of at most capacity tons. Orders are
// sorted by (priority desc, deadline asc); the sort is stable so equal keys
// keep their input order. maxVehicles > 0 caps the fleet: loads past the cap
// are dissolved into vehicle_limit unassigned records. maxVehicles <= 0 means
// no cap.
func Assign(orders []Order, capacity float64, maxVehicles int) ([]Load, []Unassigned) {
	loads := []Load{}
	unassigned := []Unassigned{}
	if len(orders) == 0 {
		return loads, unassigned
	}
	if capacity <= 0 {
		for _, o := range orders {
			unassigned = append(unassigned, Unassigned{Order: o, Reason: ReasonCapacity})
		}
		return loads, unassigned
	}

	fits := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Weight > capacity {
			unassigned = append(unassigned, Unassigned{Order: o, Reason: ReasonCapacity})
			continue
		}
		fits = append(fits, o)
	}

	sort.SliceStable(fits, func(i, j int) bool {
		if fits[i].Priority != fits[j].Priority {
			return fits[i].Priority > fits[j].Priority
		}
		return fits[i].Deadline < fits[j].Deadline
	})

	var cur Load
	for _, o := range fits {
		if len(cur.Orders) > 0 && cur.TotalWeight+o.Weight > capacity {
			loads = append(loads, cur)
			cur = Load{}
		}
		cur.Orders = append(cur.Orders, o)
		cur.TotalWeight += o.Weight
	}
	if len(cur.Orders) > 0 {
		loads = append(loads, cur)
	}

	if maxVehicles > 0 && len(loads) > maxVehicles {
		for _, ld := range loads[maxVehicles:] {
			for _, o := range ld.Orders {
				unassigned = append(unassigned, Unassigned{Order: o, Reason: ReasonVehicleLimit})
			}
		}
		loads = loads[:maxVehicles]
	}
	return loads, unassigned
}
