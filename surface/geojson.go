package surface

import (
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Projection flattens a scene-frame point for 2D output (GeoJSON, rendering).
type Projection func(p r3.Vector) orb.Point

// ProjectXY drops Z.
func ProjectXY(p r3.Vector) orb.Point { return orb.Point{p.X, p.Y} }

// ProjectTopDown views a camera-frame scene from above: X to the right, Z
// (depth) forward. Y points down in the camera frame and is dropped.
func ProjectTopDown(p r3.Vector) orb.Point { return orb.Point{p.X, p.Z} }

// Feature kinds
const (
	KindPlane    = "plane"
	KindObstacle = "obstacle"
)

// PolygonToGeometry projects a 3D polygon into an orb polygon with closed rings.
func PolygonToGeometry(p Polygon3D, proj Projection) orb.Polygon {
	if proj == nil {
		proj = ProjectXY
	}
	ring := func(r Ring3D) orb.Ring {
		out := make(orb.Ring, 0, len(r)+1)
		for _, v := range r {
			out = append(out, proj(v))
		}
		return closeRing(out)
	}
	poly := orb.Polygon{ring(p.Exterior)}
	for _, h := range p.Holes {
		poly = append(poly, ring(h))
	}
	return poly
}

// ResultToFeatureCollection converts a processed frame to a GeoJSON
// FeatureCollection: one Polygon feature per plane and per obstacle, with the
// kind, height, area, cluster and source polygon index as properties.
func ResultToFeatureCollection(fr *FrameResult, proj Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if fr == nil {
		return fc
	}

	for ci, res := range fr.Clusters {
		for _, p := range res.Planes {
			fc.Append(newFeature(KindPlane, p.Polygon, p.ZValue, p.SourceIndex, ci, proj))
		}
		for _, o := range res.Obstacles {
			fc.Append(newFeature(KindObstacle, o.Polygon, o.ZValue, o.SourceIndex, ci, proj))
		}
	}

	if fr.FrameID != "" {
		fc.ExtraMembers = geojson.Properties{"frameId": fr.FrameID}
	}
	return fc
}

func newFeature(kind string, p Polygon3D, z float64, source, cluster int, proj Projection) *geojson.Feature {
	f := geojson.NewFeature(PolygonToGeometry(p, proj))
	f.Properties["kind"] = kind
	f.Properties["zValue"] = z
	f.Properties["area"] = p.Area()
	f.Properties["sourceIndex"] = source
	f.Properties["cluster"] = cluster
	return f
}
