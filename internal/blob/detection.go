package blob

import (
	"math"
)

// Point is a 2D position in camera pixel space unless stated otherwise.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Len returns the Euclidean length of p treated as a vector.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// DistanceSquared returns the squared Euclidean distance between p and q.
func (p Point) DistanceSquared(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OrientedBox is an angle-oriented bounding box. Width is always the major
// axis and Angle is in degrees within [-90, 90).
type OrientedBox struct {
	Center Point   `json:"center"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`
}

// NormalizeOrientedBox swaps the axes so Width >= Height and wraps the
// angle into [-90, 90).
func NormalizeOrientedBox(b OrientedBox) OrientedBox {
	if b.Width < b.Height {
		b.Width, b.Height = b.Height, b.Width
		b.Angle += 90
	}
	b.Angle = math.Mod(b.Angle+90, 180)
	if b.Angle < 0 {
		b.Angle += 180
	}
	b.Angle -= 90
	return b
}

// Detection is one unlabeled blob from a single frame. Detections are read
// only to the tracker; claims are recorded in the tracker's frame arena.
type Detection struct {
	Centroid            Point       `json:"centroid"`
	BoundingBox         Rect        `json:"bounding_box"`
	Oriented            OrientedBox `json:"oriented"`
	Contour             []Point     `json:"contour,omitempty"`
	Area                float64     `json:"area"`
	SourceIntensity     float64     `json:"source_intensity"`
	BackgroundIntensity float64     `json:"background_intensity"`
}

// finite reports whether the detection's centroid and area are usable.
// Malformed detections never match or spawn.
func (d *Detection) finite() bool {
	return isFinite(d.Centroid.X) && isFinite(d.Centroid.Y) && isFinite(d.Area)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DetectionFromContour builds a Detection from a closed contour. Area uses
// the shoelace formula, the centroid the polygon first moments (falling
// back to the vertex mean for degenerate polygons) and the oriented box the
// principal axes of the contour points.
func DetectionFromContour(contour []Point, source, background float64) Detection {
	d := Detection{
		Contour:             append([]Point(nil), contour...),
		SourceIntensity:     source,
		BackgroundIntensity: background,
	}
	if len(contour) == 0 {
		return d
	}

	minX, minY := contour[0].X, contour[0].Y
	maxX, maxY := minX, minY
	var meanX, meanY float64
	for _, p := range contour {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
		meanX += p.X
		meanY += p.Y
	}
	n := float64(len(contour))
	meanX /= n
	meanY /= n
	d.BoundingBox = Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}

	var a2, cx, cy float64
	for i := range contour {
		p := contour[i]
		q := contour[(i+1)%len(contour)]
		cross := p.X*q.Y - q.X*p.Y
		a2 += cross
		cx += (p.X + q.X) * cross
		cy += (p.Y + q.Y) * cross
	}
	d.Area = math.Abs(a2) / 2
	if math.Abs(a2) > 1e-9 {
		d.Centroid = Point{X: cx / (3 * a2), Y: cy / (3 * a2)}
	} else {
		d.Centroid = Point{X: meanX, Y: meanY}
	}

	d.Oriented = principalBox(contour, Point{X: meanX, Y: meanY})
	return d
}

// principalBox fits a box aligned with the principal axes of pts.
func principalBox(pts []Point, mean Point) OrientedBox {
	var sxx, syy, sxy float64
	for _, p := range pts {
		dx := p.X - mean.X
		dy := p.Y - mean.Y
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	theta := 0.5 * math.Atan2(2*sxy, sxx-syy)
	ux, uy := math.Cos(theta), math.Sin(theta)

	minU, maxU := math.Inf(1), math.Inf(-1)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		dx := p.X - mean.X
		dy := p.Y - mean.Y
		u := dx*ux + dy*uy
		v := -dx*uy + dy*ux
		minU = math.Min(minU, u)
		maxU = math.Max(maxU, u)
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	midU := (minU + maxU) / 2
	midV := (minV + maxV) / 2
	return NormalizeOrientedBox(OrientedBox{
		Center: Point{X: mean.X + midU*ux - midV*uy, Y: mean.Y + midU*uy + midV*ux},
		Width:  maxU - minU,
		Height: maxV - minV,
		Angle:  theta * 180 / math.Pi,
	})
}
