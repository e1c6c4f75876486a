package cv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when an image has no pixels
var ErrEmptyImage = errors.New("empty image")

// FeatureExtractor detects keypoints and computes descriptors on a grayscale image
type FeatureExtractor interface {
	Extract(gray gocv.Mat) (Features, error)
}

// SIFTExtractor extracts scale and rotation invariant SIFT features.
// A detector is created per call so one extractor can serve many goroutines.
type SIFTExtractor struct{}

// Extract runs SIFT over the whole image
func (SIFTExtractor) Extract(gray gocv.Mat) (Features, error) {
	if gray.Empty() {
		return Features{}, ErrEmptyImage
	}

	sift := gocv.NewSIFT()
	defer sift.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := sift.DetectAndCompute(gray, mask)
	return Features{
		Keypoints:   keypoints,
		Descriptors: descriptors,
	}, nil
}

// GrayMat converts a frame to a single channel 8 bit matrix. The caller owns the result.
func GrayMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	if g, ok := img.(*image.Gray); ok {
		return gocv.ImageGrayToMatGray(g)
	}

	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert frame: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}
