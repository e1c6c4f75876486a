package cv

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// minOverlapPixels is the smallest masked area a correlation score is computed over
const minOverlapPixels = 16

// Verify warps the template into frame space and checks that the masked
// normalized cross-correlation with the frame reaches the threshold.
// frame must be the grayscale frame the transform was estimated against.
func Verify(frame gocv.Mat, template *Template, a Affine, threshold float64) bool {
	score, ok := verifyScore(frame, template, a)
	return ok && score >= threshold
}

// verifyScore returns the masked correlation and false when there is not
// enough overlap to compute one
func verifyScore(frame gocv.Mat, template *Template, a Affine) (float64, bool) {
	if frame.Empty() || template.Image.Empty() {
		return 0, false
	}

	m := a.Mat()
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpAffine(template.Image, &warped, m, image.Point{X: frame.Cols(), Y: frame.Rows()})

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(warped, &mask, 0, 255, gocv.ThresholdBinary)

	if gocv.CountNonZero(mask) < minOverlapPixels {
		return 0, false
	}

	result := gocv.NewMat()
	defer result.Close()
	gocv.MatchTemplate(frame, warped, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return 0, false
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	score := float64(maxVal)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return score, true
}
