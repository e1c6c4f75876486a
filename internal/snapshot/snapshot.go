// Package snapshot loads and saves frames for template authoring and offline
// debugging.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Load opens a PNG, JPEG, BMP or WebP image
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("failed to decode image %s", path)
}

// Save writes img in the format given by the file extension. WebP is lossless
// so saved frames can be cut into templates without artifacts.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: true})
	default:
		return imaging.Save(img, path)
	}
}

// Filters adjust a frame before matching. Zero values leave the frame alone.
type Filters struct {
	Contrast   float32 // percent, -100..100
	Brightness float32 // percent, -100..100
	Gamma      float32 // 1 is neutral
	Blur       float32 // gaussian sigma
	Downscale  int     // resize to this width, keeping the aspect ratio
}

// IsZero reports whether no filter is set
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Apply runs the filters over img
func (f Filters) Apply(img image.Image) image.Image {
	if f.IsZero() {
		return img
	}

	g := gift.New()
	if f.Downscale > 0 && f.Downscale < img.Bounds().Dx() {
		g.Add(gift.Resize(f.Downscale, 0, gift.LanczosResampling))
	}
	if f.Brightness != 0 {
		g.Add(gift.Brightness(f.Brightness))
	}
	if f.Contrast != 0 {
		g.Add(gift.Contrast(f.Contrast))
	}
	if f.Gamma > 0 && f.Gamma != 1 {
		g.Add(gift.Gamma(f.Gamma))
	}
	if f.Blur > 0 {
		g.Add(gift.GaussianBlur(f.Blur))
	}

	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Mark is a point to highlight on an annotated frame
type Mark struct {
	Point image.Point
	Color color.Color
}

// Annotate returns a copy of img with a crosshair and box around each mark
func Annotate(img image.Image, size int, marks ...Mark) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()

	for _, m := range marks {
		c := image.NewUniform(m.Color)
		p := m.Point
		half := size / 2

		// Crosshair
		draw.Draw(dst, image.Rect(p.X-half, p.Y, p.X+half+1, p.Y+1).Intersect(b), c, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(p.X, p.Y-half, p.X+1, p.Y+half+1).Intersect(b), c, image.Point{}, draw.Src)

		// Box outline
		box := image.Rect(p.X-size, p.Y-size, p.X+size+1, p.Y+size+1)
		for _, edge := range []image.Rectangle{
			image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+1),
			image.Rect(box.Min.X, box.Max.Y-1, box.Max.X, box.Max.Y),
			image.Rect(box.Min.X, box.Min.Y, box.Min.X+1, box.Max.Y),
			image.Rect(box.Max.X-1, box.Min.Y, box.Max.X, box.Max.Y),
		} {
			draw.Draw(dst, edge.Intersect(b), c, image.Point{}, draw.Src)
		}
	}
	return dst
}
