// Package geo wraps orb for the geometry work lmsearch needs: parsing geometry text and
// GeoJSON responses, centroids, closest points and multi-polygon merging.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrNotPolygon is returned by MergePolygons when the first feature is not polygonal.
var ErrNotPolygon = errors.New("feature collection does not contain polygons")

// ErrProjectionMismatch is returned when geometry text declares a projection other than
// the map's.
var ErrProjectionMismatch = errors.New("geometry projection does not match the map")

// ParseWKT parses geometry text into a feature without attributes. An EWKT "SRID=n;"
// prefix is accepted and ignored; coordinates are assumed to be in the map projection.
func ParseWKT(text string) (*geojson.Feature, error) {
	return ParseWKTIn(text, "")
}

// ParseWKTIn is ParseWKT for text that must be in projectionCode, e.g. "EPSG:3006". An
// SRID prefix naming another projection fails with ErrProjectionMismatch. Text without a
// prefix, or an empty projectionCode, is taken as-is.
func ParseWKTIn(text, projectionCode string) (*geojson.Feature, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(text), "SRID=") {
		srid := strings.TrimSpace(text[len("SRID="):i])
		if want := projectionNumber(projectionCode); want != "" && srid != want {
			return nil, fmt.Errorf("%w: SRID=%s, map uses %s", ErrProjectionMismatch, srid, projectionCode)
		}
		text = text[i+1:]
	}
	if text == "" {
		return nil, fmt.Errorf("empty geometry text")
	}
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	return geojson.NewFeature(g), nil
}

// projectionNumber returns the numeric part of codes like "EPSG:3006".
func projectionNumber(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.LastIndex(code, ":"); i >= 0 {
		code = code[i+1:]
	}
	return code
}

// MarshalWKT returns the WKT text of g.
func MarshalWKT(g orb.Geometry) string {
	return wkt.MarshalString(g)
}

// ReadFeatureCollection decodes a GeoJSON feature collection.
func ReadFeatureCollection(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}

// Centroid returns the center point of g. Areal geometries use the area-weighted
// centroid; degenerate results fall back to the center of the bounding box.
func Centroid(g orb.Geometry) orb.Point {
	if g == nil {
		return orb.Point{}
	}
	if p, ok := g.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) || !g.Bound().Contains(c) {
		return g.Bound().Center()
	}
	return c
}

// IsPolygonal reports whether g is a Polygon or MultiPolygon.
func IsPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// MergePolygons replaces the geometry of features[0] with one MultiPolygon holding every
// polygon of every feature, so renderers that only show the first geometry display the
// union. Non-polygon features after the first are skipped. Fewer than two features is a
// no-op. If the first feature is not polygonal nothing changes and ErrNotPolygon is returned.
func MergePolygons(features []*geojson.Feature) error {
	if len(features) < 2 {
		return nil
	}
	if features[0] == nil || !IsPolygonal(features[0].Geometry) {
		return ErrNotPolygon
	}
	merged := orb.MultiPolygon{}
	for _, f := range features {
		if f == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			merged = append(merged, g)
		case orb.MultiPolygon:
			merged = append(merged, g...)
		}
	}
	features[0].Geometry = merged
	return nil
}

// ClosestPoint returns the point of g nearest to p. For areal and linear geometries the
// result lies on the boundary.
func ClosestPoint(g orb.Geometry, p orb.Point) orb.Point {
	best := p
	bestDist := math.Inf(1)
	visit := func(q orb.Point) {
		if d := planar.DistanceSquared(p, q); d < bestDist {
			best, bestDist = q, d
		}
	}
	path := func(ls []orb.Point) {
		if len(ls) == 1 {
			visit(ls[0])
		}
		for i := 1; i < len(ls); i++ {
			visit(closestOnSegment(ls[i-1], ls[i], p))
		}
	}
	var walk func(g orb.Geometry)
	walk = func(g orb.Geometry) {
		switch t := g.(type) {
		case orb.Point:
			visit(t)
		case orb.MultiPoint:
			for _, q := range t {
				visit(q)
			}
		case orb.LineString:
			path(t)
		case orb.MultiLineString:
			for _, ls := range t {
				path(ls)
			}
		case orb.Ring:
			path(t)
		case orb.Polygon:
			for _, r := range t {
				path(r)
			}
		case orb.MultiPolygon:
			for _, poly := range t {
				for _, r := range poly {
					path(r)
				}
			}
		case orb.Collection:
			for _, c := range t {
				walk(c)
			}
		}
	}
	walk(g)
	return best
}

func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// Contains reports whether g covers p: polygons by containment, other geometries by
// a distance of at most tolerance.
func Contains(g orb.Geometry, p orb.Point, tolerance float64) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p)
	case nil:
		return false
	}
	return planar.Distance(ClosestPoint(g, p), p) <= tolerance
}
