// Package anim streams decoded, resized animation frames with their
// per-frame delays, packing deltas against a running canvas (§4.4 of the
// core contract). It supports the two animated containers registered with
// the standard image package in this repository: GIF (stdlib) and WebP
// (github.com/deepteams/webp).
package anim

import (
	"errors"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"time"

	webpanim "github.com/deepteams/webp/animation"

	"github.com/fadewall/wallpaperd/deltacodec"
	"github.com/fadewall/wallpaperd/resize"
)

// RawFrame is one element of the animation stream: a deferred pack (the
// caller knows the decoded length already, from the first resized frame)
// paired with the delay to hold it for.
type RawFrame struct {
	Pack  deltacodec.DeferredPack
	Delay time.Duration
}

const minDelay = 10 * time.Millisecond

// IsAnimatedFormat reports whether a container format detected by
// image.DecodeConfig is one this package knows how to stream frame by
// frame.
func IsAnimatedFormat(format string) bool {
	return format == "gif" || format == "webp"
}

// frameSource yields successive composited frames of an animated
// container, oldest first.
type frameSource interface {
	next() (img image.Image, delay time.Duration, ok bool, err error)
}

// Stream decodes path (whose container format must satisfy
// IsAnimatedFormat), resizing every frame after the first to (width,
// height) with filter, and packs the delta from a running canvas onto out.
// first is the caller's already-resized copy of frame 0; it seeds the
// canvas and is not re-decoded. The final element sent closes the loop
// back to first, using frame 0's delay (clamped to at least minDelay). If
// out is closed while Stream is sending on it, Stream recovers from the
// resulting panic and returns errSinkClosed, so a consumer stops decoding
// by closing out.
func Stream(path string, format string, width, height int, filter resize.Filter, first []byte, out chan<- RawFrame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errSinkClosed
		}
	}()

	f, openErr := os.Open(path)
	if openErr != nil {
		return openErr
	}
	defer f.Close()

	src, err := newFrameSource(format, f)
	if err != nil {
		return err
	}

	// Discard frame 0's image (the caller already has its resized form)
	// but remember its delay to close the loop.
	_, delay0, ok, err := src.next()
	if err != nil {
		return err
	}
	if !ok {
		return errNoFrames
	}
	if delay0 < minDelay {
		delay0 = minDelay
	}

	canvas := append([]byte(nil), first...)
	sent := false
	for {
		img, delay, ok, err := src.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		resized := resize.ToSurfaceBuffer(img, width, height, filter)
		pack := deltacodec.PackDeferred(canvas, resized)
		out <- RawFrame{Pack: pack, Delay: delay}
		canvas = resized
		sent = true
	}

	// A container with only frame 0 has nothing to animate: collapse to the
	// transition-only path by sending no frames at all, rather than a
	// degenerate self-loop closing frame.
	if !sent {
		return nil
	}

	// Close the loop: pack from the last canvas back to the first frame.
	out <- RawFrame{Pack: deltacodec.PackDeferred(canvas, first), Delay: delay0}
	return nil
}

var (
	errNoFrames   = errors.New("anim: source has no frames")
	errSinkClosed = errors.New("anim: frame channel closed")
)

func newFrameSource(format string, r io.Reader) (frameSource, error) {
	switch format {
	case "gif":
		return newGifSource(r)
	case "webp":
		return newWebpSource(r)
	default:
		return nil, errors.New("anim: unsupported container format " + format)
	}
}

// gifSource composites successive GIF frames onto a persistent RGBA
// canvas, since stdlib image/gif exposes only the raw per-frame palette
// images and their disposal bounds, not a pre-composited stream.
type gifSource struct {
	g      *gif.GIF
	canvas *image.RGBA
	idx    int
}

func newGifSource(r io.Reader) (*gifSource, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	return &gifSource{g: g, canvas: image.NewRGBA(bounds)}, nil
}

func (s *gifSource) next() (image.Image, time.Duration, bool, error) {
	if s.idx >= len(s.g.Image) {
		return nil, 0, false, nil
	}
	frame := s.g.Image[s.idx]
	draw.Draw(s.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	delayMs := s.g.Delay[s.idx] * 10 // GIF delay units are 1/100s
	s.idx++

	snap := image.NewRGBA(s.canvas.Bounds())
	copy(snap.Pix, s.canvas.Pix)
	return snap, time.Duration(delayMs) * time.Millisecond, true, nil
}

// webpSource wraps the deepteams/webp animation decoder, which already
// composites frames (blend/dispose) onto an internal canvas.
type webpSource struct {
	dec *webpanim.AnimDecoder
}

func newWebpSource(r io.Reader) (*webpSource, error) {
	a, err := webpanim.Decode(r)
	if err != nil {
		return nil, err
	}
	if err := a.DecodeFrames(); err != nil {
		return nil, err
	}
	return &webpSource{dec: webpanim.NewAnimDecoder(a)}, nil
}

func (s *webpSource) next() (image.Image, time.Duration, bool, error) {
	if !s.dec.HasNext() {
		return nil, 0, false, nil
	}
	img, delay, err := s.dec.NextFrame()
	if err != nil {
		return nil, 0, false, err
	}
	return img, delay, true, nil
}
