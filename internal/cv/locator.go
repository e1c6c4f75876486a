package cv

import (
	"image"
)

// TemplateSource provides templates by path. pkg/templates.Store implements it.
type TemplateSource interface {
	Get(path string) (*Template, error)
}

// Match is a located template: the center of its projected outline in frame
// coordinates and the candidate path that produced it
type Match struct {
	Point    image.Point
	Template string
}

// Locator finds the first template of a candidate list that is visible in a frame
type Locator struct {
	templates  TemplateSource
	extractor  FeatureExtractor
	matcher    *Matcher
	similarity float64
}

// NewLocator creates a locator reading templates from src
func NewLocator(src TemplateSource, opts ...Option) *Locator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Locator{
		templates:  src,
		extractor:  o.extractor,
		matcher:    newMatcher(o),
		similarity: o.similarityThreshold,
	}
}

// Locate evaluates candidates in order and returns the first verified match.
// Later candidates are not evaluated once one matches. An empty list is not
// found. Template load failures are returned as errors.
func (l *Locator) Locate(frame image.Image, candidates []string) (Match, bool, error) {
	if len(candidates) == 0 {
		return Match{}, false, nil
	}

	gray, err := GrayMat(frame)
	if err != nil {
		gray.Close()
		return Match{}, false, err
	}
	defer gray.Close()

	features, err := l.extractor.Extract(gray)
	if err != nil {
		return Match{}, false, err
	}
	defer features.Close()

	for _, path := range candidates {
		template, err := l.templates.Get(path)
		if err != nil {
			return Match{}, false, err
		}

		transform, ok := l.matcher.Match(features, template.Features)
		if !ok {
			continue
		}
		if !Verify(gray, template, transform, l.similarity) {
			continue
		}

		return Match{
			Point:    transform.Center(template.Size()),
			Template: path,
		}, true, nil
	}

	return Match{}, false, nil
}
