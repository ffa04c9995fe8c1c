// Package resize scales a decoded image to an output's pixel dimensions
// and converts it to the compositor's native BGRA byte order.
package resize

import (
	"math"

	"golang.org/x/image/draw"
)

// Filter selects the resampling kernel used when an image must be scaled.
type Filter int

const (
	Nearest Filter = iota
	Triangle
	CatmullRom
	Gaussian
	Lanczos3
)

// ParseFilter resolves one of the exact, case-sensitive filter names from
// the request protocol. Unknown names are rejected upstream (§6 of the
// core contract); this is the single place that performs the match.
func ParseFilter(name string) (Filter, bool) {
	switch name {
	case "Nearest":
		return Nearest, true
	case "Triangle":
		return Triangle, true
	case "CatmullRom":
		return CatmullRom, true
	case "Gaussian":
		return Gaussian, true
	case "Lanczos3":
		return Lanczos3, true
	default:
		return 0, false
	}
}

var gaussianKernel = draw.Kernel{
	Support: 2,
	At: func(t float64) float64 {
		const sigma = 0.85
		return math.Exp(-(t * t) / (2 * sigma * sigma))
	},
}

var lanczos3Kernel = draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t < -3 || t > 3 {
			return 0
		}
		return sinc(t) * sinc(t/3)
	},
}

func sinc(x float64) float64 {
	x *= math.Pi
	return math.Sin(x) / x
}

func (f Filter) interpolator() draw.Interpolator {
	switch f {
	case Nearest:
		return draw.NearestNeighbor
	case Triangle:
		return draw.BiLinear // support-1 tent kernel, matching a triangle filter
	case CatmullRom:
		return draw.CatmullRom
	case Gaussian:
		return gaussianKernel
	case Lanczos3:
		return lanczos3Kernel
	default:
		return draw.CatmullRom
	}
}
