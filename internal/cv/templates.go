package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Features holds keypoints and their descriptors. Row i of Descriptors
// describes Keypoints[i].
type Features struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Len returns the number of keypoints
func (f Features) Len() int {
	return len(f.Keypoints)
}

// Close releases the descriptor matrix
func (f *Features) Close() error {
	return f.Descriptors.Close()
}

// Template is a reference image of a UI element together with its features.
// A Template is immutable once built and safe for concurrent readers.
type Template struct {
	Path  string
	Image gocv.Mat // single channel, 8 bit
	Features
}

// NewTemplate builds a template from a grayscale image, taking ownership of gray
func NewTemplate(path string, gray gocv.Mat, extractor FeatureExtractor) (*Template, error) {
	if gray.Empty() {
		return nil, fmt.Errorf("template %s: %w", path, ErrEmptyImage)
	}

	features, err := extractor.Extract(gray)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	if features.Descriptors.Rows() != features.Len() {
		features.Close()
		return nil, fmt.Errorf("template %s: %d keypoints but %d descriptors",
			path, features.Len(), features.Descriptors.Rows())
	}

	return &Template{
		Path:     path,
		Image:    gray,
		Features: features,
	}, nil
}

// Size returns the template width and height
func (t *Template) Size() image.Point {
	return image.Point{X: t.Image.Cols(), Y: t.Image.Rows()}
}

// Close releases the image and descriptor matrices
func (t *Template) Close() error {
	t.Features.Close()
	return t.Image.Close()
}
