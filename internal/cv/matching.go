package cv

import (
	"gocv.io/x/gocv"
)

// Matcher pairs template features with frame features and estimates the
// affine transform between them
type Matcher struct {
	ratio    float64
	ransac   RANSACOptions
	minScale float64
	maxScale float64
}

// NewMatcher creates a matcher from locator options
func NewMatcher(opts ...Option) *Matcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newMatcher(o)
}

func newMatcher(o *options) *Matcher {
	return &Matcher{
		ratio:    o.ratioThreshold,
		ransac:   o.ransac,
		minScale: o.minScale,
		maxScale: o.maxScale,
	}
}

// Correspondences runs a 2-nearest-neighbor search for every template
// descriptor and keeps the pairs that pass the ratio test
func (m *Matcher) Correspondences(frame, template Features) []Correspondence {
	if template.Len() == 0 || frame.Len() < 2 {
		return nil
	}
	if template.Descriptors.Cols() != frame.Descriptors.Cols() {
		return nil
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormL2, false)
	defer bf.Close()

	knn := bf.KnnMatch(template.Descriptors, frame.Descriptors, 2)

	pairs := make([]Correspondence, 0, len(knn))
	for _, nn := range knn {
		if len(nn) < 2 {
			continue
		}
		best, second := nn[0], nn[1]
		if !(best.Distance < m.ratio*second.Distance) {
			continue
		}
		if best.QueryIdx < 0 || best.QueryIdx >= template.Len() ||
			best.TrainIdx < 0 || best.TrainIdx >= frame.Len() {
			continue
		}

		src := template.Keypoints[best.QueryIdx]
		dst := frame.Keypoints[best.TrainIdx]
		pairs = append(pairs, Correspondence{
			Src: Point2{X: src.X, Y: src.Y},
			Dst: Point2{X: dst.X, Y: dst.Y},
		})
	}
	return pairs
}

// Match returns the template-to-frame transform, or false when there are too
// few correspondences, the geometry is degenerate or the scale is implausible
func (m *Matcher) Match(frame, template Features) (Affine, bool) {
	pairs := m.Correspondences(frame, template)
	if len(pairs) < 3 {
		return Affine{}, false
	}

	a, _, ok := EstimateAffine(pairs, m.ransac)
	if !ok {
		return Affine{}, false
	}

	if s := a.Scale(); s < m.minScale || s > m.maxScale {
		return Affine{}, false
	}
	return a, true
}
