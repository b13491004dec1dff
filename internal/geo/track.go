package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// TrackPoint is one sampled position of a unit's path, in WGS84.
type TrackPoint struct {
	Longitude float64
	Latitude  float64
}

// TrackLineString converts a sampled unit path into an EPSG:3857
// line string for storage.
func TrackLineString(points []TrackPoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(points))
	}

	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		x, y, _ := f(p.Longitude, p.Latitude, 0)
		flatCoords = append(flatCoords, x, y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}
