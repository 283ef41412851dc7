// Package calibration maps camera-space coordinates onto screen space.
//
// A calibration session shows the user a grid of targets; each target is
// confirmed by holding a touch on it. The confirmed camera-space
// centroids are paired with the target positions and an affine transform
// is fitted by least squares, then installed on the tracker.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// Quality grades a fitted transform by its residual error in screen pixels.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Residual thresholds in screen pixels.
const (
	RMSEThresholdExcellent = 2.0
	RMSEThresholdGood      = 5.0
	RMSEThresholdFair      = 12.0
)

var (
	// ErrTooFewPoints is returned when fewer than three pairs are given.
	ErrTooFewPoints = errors.New("calibration: at least 3 point pairs required")
	// ErrDegenerate is returned when the camera points are collinear.
	ErrDegenerate = errors.New("calibration: camera points are collinear")
)

// Affine is the transform x' = A·x + B·y + C, y' = D·x + E·y + F.
type Affine struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

// Identity returns the affine identity.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Scale returns the transform stretching a camera frame of cw×ch onto a
// screen of sw×sh with no rotation.
func Scale(cw, ch, sw, sh float64) Affine {
	if cw <= 0 || ch <= 0 {
		return Identity()
	}
	return Affine{A: sw / cw, E: sh / ch}
}

// TransformPoint implements blob.Transformer.
func (t Affine) TransformPoint(p blob.Point) blob.Point {
	return blob.Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// TransformDimension implements blob.Transformer. Sizes scale by the length
// of the transformed unit axes, ignoring translation.
func (t Affine) TransformDimension(w, h float64) (float64, float64) {
	return w * math.Hypot(t.A, t.D), h * math.Hypot(t.B, t.E)
}

// FitResult describes how well a fitted transform explains its inputs.
type FitResult struct {
	Points  int     `json:"points"`
	RMSE    float64 `json:"rmse"`
	MaxErr  float64 `json:"max_error"`
	Quality Quality `json:"quality"`
}

// FitAffine solves for the affine transform mapping camera onto screen in
// the least-squares sense.
func FitAffine(camera, screen []blob.Point) (Affine, FitResult, error) {
	if len(camera) != len(screen) {
		return Affine{}, FitResult{}, fmt.Errorf("calibration: %d camera points but %d screen points", len(camera), len(screen))
	}
	n := len(camera)
	if n < 3 {
		return Affine{}, FitResult{}, ErrTooFewPoints
	}
	if collinear(camera) {
		return Affine{}, FitResult{}, ErrDegenerate
	}

	a := mat.NewDense(n, 3, nil)
	b := mat.NewDense(n, 2, nil)
	for i := range camera {
		a.SetRow(i, []float64{camera[i].X, camera[i].Y, 1})
		b.SetRow(i, []float64{screen[i].X, screen[i].Y})
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return Affine{}, FitResult{}, fmt.Errorf("calibration: least squares: %w", err)
	}

	t := Affine{
		A: x.At(0, 0), B: x.At(1, 0), C: x.At(2, 0),
		D: x.At(0, 1), E: x.At(1, 1), F: x.At(2, 1),
	}
	return t, assess(t, camera, screen), nil
}

func assess(t Affine, camera, screen []blob.Point) FitResult {
	var sum, worst float64
	for i := range camera {
		d := t.TransformPoint(camera[i]).Sub(screen[i]).Len()
		sum += d * d
		worst = math.Max(worst, d)
	}
	r := FitResult{
		Points: len(camera),
		RMSE:   math.Sqrt(sum / float64(len(camera))),
		MaxErr: worst,
	}
	switch {
	case r.RMSE < RMSEThresholdExcellent:
		r.Quality = QualityExcellent
	case r.RMSE < RMSEThresholdGood:
		r.Quality = QualityGood
	case r.RMSE < RMSEThresholdFair:
		r.Quality = QualityFair
	default:
		r.Quality = QualityPoor
	}
	return r
}

// collinear reports whether pts span less than two dimensions.
func collinear(pts []blob.Point) bool {
	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	mx /= float64(len(pts))
	my /= float64(len(pts))

	var sxx, syy, sxy float64
	for _, p := range pts {
		dx, dy := p.X-mx, p.Y-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	det := sxx*syy - sxy*sxy
	scale := (sxx + syy) * (sxx + syy)
	return scale == 0 || det <= 1e-9*scale
}

// FileExtension is the required extension for calibration files.
const FileExtension = ".json"

// checkExtension rejects paths Load would refuse.
func checkExtension(path string) error {
	if filepath.Ext(path) != FileExtension {
		return fmt.Errorf("calibration file must have %s extension, got: %s", FileExtension, path)
	}
	return nil
}

// Save writes t as JSON to path.
func Save(path string, t Affine) error {
	if err := checkExtension(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}

// Load reads an Affine previously written by Save.
func Load(path string) (Affine, error) {
	if err := checkExtension(path); err != nil {
		return Affine{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Affine{}, fmt.Errorf("failed to read calibration file: %w", err)
	}
	var t Affine
	if err := json.Unmarshal(data, &t); err != nil {
		return Affine{}, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	return t, nil
}
