package resize

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// ToSurfaceBuffer scales src to exactly width x height pixels using filter,
// then swaps the R and B bytes of every pixel to match the compositor's
// native BGRA layout. Alpha is passed through unchanged.
//
// If src's bounds already equal (width, height), no resampling happens; the
// pixels are copied and swizzled directly, so the result is a pure byte
// swizzle of the source.
func ToSurfaceBuffer(src image.Image, width, height int, filter Filter) []byte {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return swizzle(toRGBA(src))
	}
	return swizzle(resizeToFill(src, width, height, filter))
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == image.Pt(0, 0) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// resizeToFill preserves the source aspect ratio, scales (up or down) to
// cover the target rectangle, then crops the overflow symmetrically from
// the center.
func resizeToFill(src image.Image, width, height int, filter Filter) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	scaleX := float64(width) / float64(sw)
	scaleY := float64(height) / float64(sh)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	coverW := int(float64(sw)*scale + 0.5)
	coverH := int(float64(sh)*scale + 0.5)
	if coverW < width {
		coverW = width
	}
	if coverH < height {
		coverH = height
	}

	covered := image.NewRGBA(image.Rect(0, 0, coverW, coverH))
	interp := filter.interpolator()
	interp.Scale(covered, covered.Bounds(), src, sb, xdraw.Src, nil)

	cropX := (coverW - width) / 2
	cropY := (coverH - height) / 2
	cropRect := image.Rect(cropX, cropY, cropX+width, cropY+height)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), covered, cropRect.Min, draw.Src)
	return out
}

// swizzle swaps byte 0 and byte 2 of each 4-byte pixel (RGBA -> BGRA) and
// returns the flat pixel buffer. Applying it twice is the identity.
func swizzle(img *image.RGBA) []byte {
	n := len(img.Pix)
	out := make([]byte, n)
	copy(out, img.Pix)
	for i := 0; i+3 < n; i += 4 {
		out[i], out[i+2] = out[i+2], out[i]
	}
	return out
}
