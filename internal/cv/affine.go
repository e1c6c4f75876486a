package cv

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Affine maps template coordinates to frame coordinates:
//
//	x' = A[0][0]*x + A[0][1]*y + A[0][2]
//	y' = A[1][0]*x + A[1][1]*y + A[1][2]
type Affine [2][3]float64

// Identity returns the identity transform
func Identity() Affine {
	return Affine{{1, 0, 0}, {0, 1, 0}}
}

// Apply transforms a single point
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0][0]*x + a[0][1]*y + a[0][2],
		a[1][0]*x + a[1][1]*y + a[1][2]
}

// Det is the determinant of the linear part, i.e. the area scale factor
func (a Affine) Det() float64 {
	return a[0][0]*a[1][1] - a[0][1]*a[1][0]
}

// Scale returns the mean linear scale of the transform
func (a Affine) Scale() float64 {
	return math.Sqrt(math.Abs(a.Det()))
}

// Mat returns the transform as a 2x3 CV_64F matrix. The caller closes it.
func (a Affine) Mat() gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, a[r][c])
		}
	}
	return m
}

// Center returns the centroid of the four transformed corners of a w x h rectangle
func (a Affine) Center(size image.Point) image.Point {
	w, h := float64(size.X), float64(size.Y)
	corners := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}

	var sx, sy float64
	for _, c := range corners {
		x, y := a.Apply(c[0], c[1])
		sx += x
		sy += y
	}
	return image.Point{X: int(sx / 4), Y: int(sy / 4)}
}

// Point2 is a sub-pixel position
type Point2 struct {
	X, Y float64
}

// Correspondence pairs a template point with the frame point it matched
type Correspondence struct {
	Src Point2 // template space
	Dst Point2 // frame space
}

// RANSACOptions tunes the robust affine estimator
type RANSACOptions struct {
	Threshold     float64 // max reprojection error in pixels for an inlier
	MinInliers    int     // minimum consensus size for an accepted model
	MaxIterations int
	Confidence    float64 // used to stop early once a good model is found
	RefineIters   int     // Levenberg-Marquardt passes on the consensus set
}

// DefaultRANSACOptions returns the estimator defaults
func DefaultRANSACOptions() RANSACOptions {
	return RANSACOptions{
		Threshold:     5.0,
		MinInliers:    3,
		MaxIterations: 2000,
		Confidence:    0.995,
		RefineIters:   10,
	}
}

// EstimateAffine fits an affine transform to the correspondences with OpenCV's
// RANSAC estimator. It returns the model, its inlier count and false if no
// non-degenerate model reaches opts.MinInliers. Fewer than three
// correspondences never yield a model.
func EstimateAffine(pairs []Correspondence, opts RANSACOptions) (Affine, int, bool) {
	minInliers := opts.MinInliers
	if minInliers < 3 {
		minInliers = 3
	}
	if len(pairs) < 3 || len(pairs) < minInliers {
		return Affine{}, 0, false
	}

	srcPts := make([]gocv.Point2f, len(pairs))
	dstPts := make([]gocv.Point2f, len(pairs))
	for i, p := range pairs {
		srcPts[i] = gocv.Point2f{X: float32(p.Src.X), Y: float32(p.Src.Y)}
		dstPts[i] = gocv.Point2f{X: float32(p.Dst.X), Y: float32(p.Dst.Y)}
	}
	from := gocv.NewPoint2fVectorFromPoints(srcPts)
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(dstPts)
	defer to.Close()

	iterations := opts.MaxIterations
	if iterations <= 0 {
		iterations = 1
	}
	refine := opts.RefineIters
	if refine < 0 {
		refine = 0
	}

	inliers := gocv.NewMat()
	defer inliers.Close()
	result := gocv.EstimateAffine2DWithParams(from, to, inliers, int(gocv.HomographyMethodRANSAC),
		opts.Threshold, uint(iterations), opts.Confidence, uint(refine))
	defer result.Close()

	if result.Empty() || result.Rows() != 2 || result.Cols() != 3 {
		return Affine{}, 0, false
	}

	count := 0
	if !inliers.Empty() {
		count = gocv.CountNonZero(inliers)
	}
	if count < minInliers {
		return Affine{}, 0, false
	}

	var a Affine
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			a[r][c] = result.GetDoubleAt(r, c)
		}
	}
	if math.IsNaN(a.Det()) || math.Abs(a.Det()) < 1e-9 {
		return Affine{}, 0, false
	}
	return a, count, true
}
