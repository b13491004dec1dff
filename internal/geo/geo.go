// Package geo converts the WGS84 positions reported by the simulation
// into the web-mercator points the recorder stores. Points are kept in
// EPSG:3857 even for world locations because SQLite has no spatial
// awareness and point data must round-trip through strings during
// migrations.
package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// earthRadiusM is the mean earth radius used for spherical distance math.
const earthRadiusM = 6371000.0

// Point3857From4326 creates a web-mercator point from a longitude and
// latitude. Altitude is carried through unchanged as Z.
func Point3857From4326(longitude, latitude, altitude float64) (geom.Point, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return geom.NewEmptyPoint(geom.DimXYZ), ErrInvalidCoordinates
	}

	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)

	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    altitude,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), err
	}
	return point, nil
}

// DistanceMeters returns the great-circle distance between two WGS84
// positions.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// Destination returns the WGS84 position reached by travelling the given
// distance from a start position along a true bearing in degrees.
func Destination(lat, lon, bearingDeg, meters float64) (float64, float64) {
	phi1 := lat * math.Pi / 180
	lambda1 := lon * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := meters / earthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	lat2 := phi2 * 180 / math.Pi
	lon2 := lambda2 * 180 / math.Pi
	// Normalize longitude to [-180, 180)
	lon2 = math.Mod(lon2+540, 360) - 180
	return lat2, lon2
}
