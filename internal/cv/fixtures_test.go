package cv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// blockTexture returns a size x size grayscale mosaic of random 8px blocks.
// Values stay above zero so a warped copy produces a full mask.
func blockTexture(seed int64, size int) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, size, size))

	const block = 8
	for by := 0; by < size; by += block {
		for bx := 0; bx < size; bx += block {
			v := color.Gray{Y: uint8(40 + rng.Intn(216))}
			for y := by; y < by+block && y < size; y++ {
				for x := bx; x < bx+block && x < size; x++ {
					img.SetGray(x, y, v)
				}
			}
		}
	}
	return img
}

// gradientFrame returns a smooth, nearly featureless background
func gradientFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(90 + 60*x/w + 20*y/h)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// embed pastes a scaled and rotated copy of tmpl centered on center and
// returns the new frame
func embed(frame *image.NRGBA, tmpl image.Image, scale, angle float64, center image.Point) *image.NRGBA {
	w := int(float64(tmpl.Bounds().Dx()) * scale)
	scaled := imaging.Resize(tmpl, w, 0, imaging.Linear)
	rotated := imaging.Rotate(scaled, angle, color.Transparent)

	pos := image.Point{
		X: center.X - rotated.Bounds().Dx()/2,
		Y: center.Y - rotated.Bounds().Dy()/2,
	}
	return imaging.Overlay(frame, rotated, pos, 1.0)
}

var errNoTemplate = errors.New("no such template")

// mapSource is an in-memory TemplateSource
type mapSource struct {
	templates map[string]*Template
	gets      int
}

func newMapSource(t *testing.T, images map[string]*image.Gray) *mapSource {
	t.Helper()

	src := &mapSource{templates: make(map[string]*Template)}
	for path, img := range images {
		mat, err := gocv.ImageGrayToMatGray(img)
		if err != nil {
			t.Fatalf("failed to convert %s: %v", path, err)
		}
		tmpl, err := NewTemplate(path, mat, SIFTExtractor{})
		if err != nil {
			t.Fatalf("failed to build template %s: %v", path, err)
		}
		if tmpl.Len() < 3 {
			t.Fatalf("template %s has only %d keypoints", path, tmpl.Len())
		}
		src.templates[path] = tmpl
	}

	t.Cleanup(func() {
		for _, tmpl := range src.templates {
			tmpl.Close()
		}
	})
	return src
}

func (s *mapSource) Get(path string) (*Template, error) {
	s.gets++
	tmpl, ok := s.templates[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, errNoTemplate)
	}
	return tmpl, nil
}

func within(got, want image.Point, tol int) bool {
	dx, dy := got.X-want.X, got.Y-want.Y
	return dx >= -tol && dx <= tol && dy >= -tol && dy <= tol
}
