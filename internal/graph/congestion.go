package graph

// Time-of-day congestion model. Peak windows slow every edge to 60% of its
// base speed; off-peak leaves speeds untouched. The transform always returns
// a fresh snapshot so baseline graphs shared across scenario runs are never
// mutated.

const (
	morningPeakStart = 7
	morningPeakEnd   = 9
	eveningPeakStart = 17
	eveningPeakEnd   = 19

	peakSpeedFactor = 0.6
)

// IsPeakHour reports whether hour falls in a rush-hour window (inclusive).
func IsPeakHour(hour int) bool {
	return (hour >= morningPeakStart && hour <= morningPeakEnd) ||
		(hour >= eveningPeakStart && hour <= eveningPeakEnd)
}

// ApplyCongestion returns a copy of g with effective speeds for the given
// hour-of-day and derived costs recomputed. hour outside [0,23] is ErrBadHour.
func ApplyCongestion(g *Graph, hour int) (*Graph, error) {
	if hour < 0 || hour > 23 {
		return nil, ErrBadHour
	}
	c := g.Clone()
	if !IsPeakHour(hour) {
		return c, nil
	}
	for from, edges := range c.out {
		for i := range edges {
			e := &edges[i]
			e.SpeedKph *= peakSpeedFactor
			e.TimeCost, e.MoneyCost = derive(e.DistanceKm, e.SpeedKph, e.Congestion, c.unitRate)
		}
		c.out[from] = edges
	}
	return c, nil
}
