package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// VaryColor shifts an RGB color through HSV space: variance is added to the hue and
// subtracted from the saturation, both clamped to [0, 1], and the result converted back.
// Used to give procedurally filled voxels a natural-looking spread around a base color.
//
// Parameters:
//   - rgb: the base color, each channel in [0, 1]
//   - variance: signed hue/saturation offset, typically within ±0.02
//
// Returns:
//   - mgl32.Vec3: the varied RGB color
func VaryColor(rgb mgl32.Vec3, variance float32) mgl32.Vec3 {
	hsv := RGBToHSV(rgb)
	hsv[0] = Clamp01(hsv[0] + variance)
	hsv[1] = Clamp01(hsv[1] - variance)
	return HSVToRGB(hsv)
}

// RGBToHSV converts an RGB color to HSV with every component normalized to [0, 1].
//
// Parameters:
//   - rgb: the color to convert
//
// Returns:
//   - mgl32.Vec3: (hue, saturation, value)
func RGBToHSV(rgb mgl32.Vec3) mgl32.Vec3 {
	r, g, b := rgb[0], rgb[1], rgb[2]
	minVal := min(r, g, b)
	maxVal := max(r, g, b)
	delta := maxVal - minVal

	if delta < 0.00001 {
		// achromatic
		return mgl32.Vec3{0, 0, maxVal}
	}

	var hue float32
	switch maxVal {
	case r:
		hue = (g - b) / delta
	case g:
		hue = 2 + (b-r)/delta
	default:
		hue = 4 + (r-g)/delta
	}
	hue /= 6
	if hue < 0 {
		hue += 1
	}

	return mgl32.Vec3{hue, delta / maxVal, maxVal}
}

// HSVToRGB converts an HSV color (all components in [0, 1]) back to RGB.
//
// Parameters:
//   - hsv: (hue, saturation, value)
//
// Returns:
//   - mgl32.Vec3: the RGB color
func HSVToRGB(hsv mgl32.Vec3) mgl32.Vec3 {
	hue, saturation, value := hsv[0], hsv[1], hsv[2]

	chroma := value * saturation
	huePrime := hue * 6
	x := chroma * (1 - float32(math.Abs(math.Mod(float64(huePrime), 2)-1)))

	var rgb mgl32.Vec3
	switch {
	case huePrime < 1:
		rgb = mgl32.Vec3{chroma, x, 0}
	case huePrime < 2:
		rgb = mgl32.Vec3{x, chroma, 0}
	case huePrime < 3:
		rgb = mgl32.Vec3{0, chroma, x}
	case huePrime < 4:
		rgb = mgl32.Vec3{0, x, chroma}
	case huePrime < 5:
		rgb = mgl32.Vec3{x, 0, chroma}
	default:
		rgb = mgl32.Vec3{chroma, 0, x}
	}

	m := value - chroma
	return rgb.Add(mgl32.Vec3{m, m, m})
}
