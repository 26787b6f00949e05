// Package colormap provides the palettes points are colored with.
package colormap

import (
	"image/color"
	"sort"
)

// Colormap maps normalized values [0, 1] or category indices to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// Default is the color of points when nothing is colored by.
var Default = color.RGBA{R: 153, G: 153, B: 153, A: 255}

// LinearColormap interpolates between evenly spaced stops.
type LinearColormap struct {
	stops []color.RGBA
}

// At returns the color at position t, clamped to [0, 1].
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 || t != t {
		return c.stops[0]
	}
	if t >= 1 {
		return c.stops[len(c.stops)-1]
	}
	pos := t * float64(len(c.stops)-1)
	lo := int(pos)
	hi := min(lo+1, len(c.stops)-1)
	return lerp(c.stops[lo], c.stops[hi], pos-float64(lo))
}

// AtIndex returns stop i, wrapping around.
func (c LinearColormap) AtIndex(i int) color.Color {
	return c.stops[wrap(i, len(c.stops))]
}

// CategoricalColormap assigns distinct colors to categories.
type CategoricalColormap struct {
	colors []color.RGBA
}

// At spreads t over the palette.
func (c CategoricalColormap) At(t float64) color.Color {
	idx := int(t * float64(len(c.colors)))
	return c.colors[max(0, min(idx, len(c.colors)-1))]
}

// AtIndex returns the color of category i, wrapping around.
func (c CategoricalColormap) AtIndex(i int) color.Color {
	return c.colors[wrap(i, len(c.colors))]
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*(float64(y)-float64(x)))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// RGB returns c as normalized float32 red, green and blue, the layout of
// the per-point color buffer.
func RGB(c color.Color) [3]float32 {
	r, g, b, _ := c.RGBA()
	return [3]float32{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff}
}

// Viridis (matplotlib).
var Viridis = LinearColormap{stops: []color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{32, 144, 140, 255},
	{34, 167, 132, 255},
	{68, 190, 112, 255},
	{121, 209, 81, 255},
	{189, 222, 38, 255},
	{253, 231, 37, 255},
}}

// Plasma (matplotlib).
var Plasma = LinearColormap{stops: []color.RGBA{
	{13, 8, 135, 255},
	{75, 3, 161, 255},
	{125, 3, 168, 255},
	{168, 34, 150, 255},
	{203, 70, 121, 255},
	{229, 107, 93, 255},
	{248, 148, 65, 255},
	{253, 195, 40, 255},
	{240, 249, 33, 255},
}}

// Seurat is the light gray to red feature plot scale.
var Seurat = LinearColormap{stops: []color.RGBA{
	{211, 211, 211, 255},
	{255, 0, 0, 255},
}}

// Categorical holds 20 distinct colors (d3 category20).
var Categorical = CategoricalColormap{colors: []color.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{214, 39, 40, 255},
	{148, 103, 189, 255},
	{140, 86, 75, 255},
	{227, 119, 194, 255},
	{127, 127, 127, 255},
	{188, 189, 34, 255},
	{23, 190, 207, 255},
	{174, 199, 232, 255},
	{255, 187, 120, 255},
	{152, 223, 138, 255},
	{255, 152, 150, 255},
	{197, 176, 213, 255},
	{196, 156, 148, 255},
	{247, 182, 210, 255},
	{199, 199, 199, 255},
	{219, 219, 141, 255},
	{158, 218, 229, 255},
}}

var byName = map[string]Colormap{
	"viridis":     Viridis,
	"plasma":      Plasma,
	"seurat":      Seurat,
	"categorical": Categorical,
}

// Lookup returns the named colormap.
func Lookup(name string) (Colormap, bool) {
	c, ok := byName[name]
	return c, ok
}

// Names lists the known colormaps in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
