// Package geo provides the small amount of spherical math the alert pipeline
// needs: great-circle distance and bearing between two points, and a cheap
// bounding box and center for event polygons.
package geo

import "math"

// EarthRadiusMiles is tuned for mid-latitudes (around 39°N), where most
// severe-weather reports originate.
const EarthRadiusMiles = 3961

// Point is a WGS-84 latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Compass is a coarse compass heading as an abbreviation ("NW") and a
// speakable name ("northwest").
type Compass struct {
	Abbrev string
	Name   string
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine distance between two points in whole miles,
// rounded down. NaN coordinates produce NaN.
func Distance(p1, p2 Point) float64 {
	lat1 := toRad(p1.Lat)
	lat2 := toRad(p2.Lat)
	dLat := toRad(p2.Lat - p1.Lat)
	dLon := toRad(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Floor(EarthRadiusMiles * c)
}

// Bearing returns the compass direction of p2 as seen from p1.
func Bearing(p1, p2 Point) Compass {
	startLat := toRad(p1.Lat)
	destLat := toRad(p2.Lat)
	dLon := toRad(p2.Lon - p1.Lon)

	y := math.Sin(dLon) * math.Cos(destLat)
	x := math.Cos(startLat)*math.Sin(destLat) - math.Sin(startLat)*math.Cos(destLat)*math.Cos(dLon)

	// Rotated half a turn so south sits in the bucket that wraps past 360.
	heading := math.Mod(toDeg(math.Atan2(y, x))+180, 360)
	return Cardinal(heading)
}

// Cardinal buckets a heading that has been rotated by 180° (0 = south) into
// one of eight compass octants. The boundaries are historical and not evenly
// spaced: west spans 47.5–112.5.
func Cardinal(heading float64) Compass {
	switch {
	case heading >= 22.5 && heading < 47.5:
		return Compass{"SW", "southwest"}
	case heading >= 47.5 && heading < 112.5:
		return Compass{"W", "west"}
	case heading >= 112.5 && heading < 157.5:
		return Compass{"NW", "northwest"}
	case heading >= 157.5 && heading < 202.5:
		return Compass{"N", "north"}
	case heading >= 202.5 && heading < 247.5:
		return Compass{"NE", "northeast"}
	case heading >= 247.5 && heading < 292.5:
		return Compass{"E", "east"}
	case heading >= 292.5 && heading < 337.5:
		return Compass{"SE", "southeast"}
	default:
		return Compass{"S", "south"}
	}
}
