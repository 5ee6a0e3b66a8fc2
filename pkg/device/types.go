package device

import "fmt"

// Color is an RGB status color.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Status colors shown at lifecycle points.
var (
	ColorBooting         = Color{255, 0, 0}
	ColorNetworkUp       = Color{255, 255, 204}
	ColorChannelUp       = Color{173, 216, 230}
	ColorMessageReceived = Color{0, 0, 255}
	ColorUnlocked        = Color{0, 255, 0}
	ColorRejected        = Color{255, 0, 0}
	ColorWaiting         = Color{255, 125, 0}
)
