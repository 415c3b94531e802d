package catalog

// Bounds are the inclusive ranges an event must fall inside to be kept.
type Bounds struct {
	LatMin   float64 `mapstructure:"lat_min"`
	LatMax   float64 `mapstructure:"lat_max"`
	LonMin   float64 `mapstructure:"lon_min"`
	LonMax   float64 `mapstructure:"lon_max"`
	MagMin   float64 `mapstructure:"mag_min"`
	MagMax   float64 `mapstructure:"mag_max"`
	DepthMin float64 `mapstructure:"depth_min"`
	DepthMax float64 `mapstructure:"depth_max"`
}

// DefaultBounds covers the Alor region used by the regional network.
func DefaultBounds() Bounds {
	return Bounds{
		LatMin: -12.0, LatMax: -7.0,
		LonMin: 118.8, LonMax: 125.5,
		MagMin: 0.0, MagMax: 9.0,
		DepthMin: 0, DepthMax: 1000,
	}
}

// Contains reports whether ev lies inside every range. NaN values never match.
func (b Bounds) Contains(ev Event) bool {
	return between(ev.Latitude, b.LatMin, b.LatMax) &&
		between(ev.Longitude, b.LonMin, b.LonMax) &&
		between(ev.Magnitude, b.MagMin, b.MagMax) &&
		between(ev.Depth, b.DepthMin, b.DepthMax)
}

// Filter returns the events inside b, keeping their order.
func Filter(events []Event, b Bounds) []Event {
	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		if b.Contains(ev) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
