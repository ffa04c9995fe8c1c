package resize

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParseFilterExactNames(t *testing.T) {
	names := []string{"Nearest", "Triangle", "CatmullRom", "Gaussian", "Lanczos3"}
	for _, n := range names {
		if _, ok := ParseFilter(n); !ok {
			t.Fatalf("expected %q to parse", n)
		}
	}
	for _, bad := range []string{"nearest", "lanczos3", "", "Bilinear"} {
		if _, ok := ParseFilter(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestSameDimensionsIsPureSwizzle(t *testing.T) {
	c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	img := solidImage(4, 3, c)

	out := ToSurfaceBuffer(img, 4, 3, CatmullRom)
	if len(out) != 4*4*3 {
		t.Fatalf("unexpected output length %d", len(out))
	}
	for i := 0; i < len(out); i += 4 {
		if out[i] != c.B || out[i+1] != c.G || out[i+2] != c.R || out[i+3] != c.A {
			t.Fatalf("pixel %d not swizzled correctly: %v", i/4, out[i:i+4])
		}
	}
}

func TestResizeProducesExactDimensions(t *testing.T) {
	img := solidImage(37, 51, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	for _, f := range []Filter{Nearest, Triangle, CatmullRom, Gaussian, Lanczos3} {
		out := ToSurfaceBuffer(img, 16, 16, f)
		if len(out) != 4*16*16 {
			t.Fatalf("filter %v: expected %d bytes, got %d", f, 4*16*16, len(out))
		}
	}
}

func TestResizeToFillPreservesSolidColor(t *testing.T) {
	c := color.RGBA{R: 5, G: 6, B: 7, A: 255}
	img := solidImage(100, 50, c)
	out := ToSurfaceBuffer(img, 20, 20, Triangle)
	for i := 0; i < len(out); i += 4 {
		if out[i] != c.B || out[i+1] != c.G || out[i+2] != c.R {
			t.Fatalf("expected uniform color after crop at pixel %d, got %v", i/4, out[i:i+4])
		}
	}
}
