package geo

// Bounds is the axis-aligned rectangle enclosing a polygon.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// PolygonBounds scans the vertices once and returns their bounding box.
// ok is false for an empty polygon.
func PolygonBounds(poly []Point) (b Bounds, ok bool) {
	if len(poly) == 0 {
		return Bounds{}, false
	}

	b = Bounds{
		MinLat: poly[0].Lat,
		MinLon: poly[0].Lon,
		MaxLat: poly[0].Lat,
		MaxLon: poly[0].Lon,
	}
	for _, p := range poly[1:] {
		b.MinLat = min(b.MinLat, p.Lat)
		b.MaxLat = max(b.MaxLat, p.Lat)
		b.MinLon = min(b.MinLon, p.Lon)
		b.MaxLon = max(b.MaxLon, p.Lon)
	}
	return b, true
}

// PolygonCentroid averages the vertices. This is only a rough center and is
// off for large or strongly concave polygons; it is good enough to measure
// how far away a warning box is.
func PolygonCentroid(poly []Point) (Point, bool) {
	if len(poly) == 0 {
		return Point{}, false
	}

	var sumLat, sumLon float64
	for _, p := range poly {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(poly))
	return Point{Lat: sumLat / n, Lon: sumLon / n}, true
}

// HalfDiagonal is half the distance between opposite corners of b, used as
// an approximate radius for polygon-only events.
func (b Bounds) HalfDiagonal() float64 {
	return Distance(
		Point{Lat: b.MinLat, Lon: b.MinLon},
		Point{Lat: b.MaxLat, Lon: b.MaxLon},
	) / 2
}
