package theme

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Dim scales c towards black. brightness is clamped to [0,1]; 1 returns c unchanged.
func Dim(c RGB, brightness float64) RGB {
	if brightness >= 1 {
		return c
	}
	if brightness <= 0 {
		return RGB{}
	}
	dimmed := toColorful(c).BlendRgb(colorful.Color{}, 1-brightness)
	r, g, b := dimmed.RGB255()
	return RGB{r, g, b}
}

// Hex returns the "#rrggbb" form of c.
func Hex(c RGB) string {
	return toColorful(c).Hex()
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{
		R: float64(c[0]) / 255.0,
		G: float64(c[1]) / 255.0,
		B: float64(c[2]) / 255.0,
	}
}
