package session

import "fmt"

// Color is an RGB triple assigned to a user for rendering their edits.
type Color struct {
	R, G, B uint8
}

// String serializes the color in the "R,G,B" wire form.
func (c Color) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// DefaultPalette is the fixed set of colors users cycle through, in
// assignment order: red, blue, green, orange, magenta, light gray.
var DefaultPalette = []Color{
	{255, 0, 0},
	{0, 0, 255},
	{0, 255, 0},
	{255, 200, 0},
	{255, 0, 255},
	{192, 192, 192},
}
