package cv

// Option configures a Locator or Matcher
type Option func(*options)

type options struct {
	ratioThreshold      float64
	similarityThreshold float64
	ransac              RANSACOptions
	minScale            float64
	maxScale            float64
	extractor           FeatureExtractor
}

func defaultOptions() *options {
	return &options{
		ratioThreshold:      0.7,
		similarityThreshold: 0.8,
		ransac:              DefaultRANSACOptions(),
		minScale:            0.1,
		maxScale:            10,
		extractor:           SIFTExtractor{},
	}
}

// WithRatioThreshold sets the nearest/second-nearest distance ratio
func WithRatioThreshold(r float64) Option {
	return func(o *options) {
		o.ratioThreshold = r
	}
}

// WithSimilarityThreshold sets the minimum correlation for verification
func WithSimilarityThreshold(s float64) Option {
	return func(o *options) {
		o.similarityThreshold = s
	}
}

// WithInlierThreshold sets the RANSAC reprojection threshold in pixels
func WithInlierThreshold(px float64) Option {
	return func(o *options) {
		o.ransac.Threshold = px
	}
}

// WithMinInliers sets the minimum RANSAC consensus (never below 3)
func WithMinInliers(n int) Option {
	return func(o *options) {
		if n < 3 {
			n = 3
		}
		o.ransac.MinInliers = n
	}
}

// WithMaxIterations caps RANSAC iterations
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.ransac.MaxIterations = n
	}
}

// WithScaleRange bounds the accepted template-to-frame scale
func WithScaleRange(min, max float64) Option {
	return func(o *options) {
		o.minScale = min
		o.maxScale = max
	}
}

// WithExtractor replaces the SIFT extractor used for frames
func WithExtractor(e FeatureExtractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}
