package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyP     = 80  // P key (ASCII), toggles physics
	KeyR     = 82  // R key (ASCII), resets the world
	KeyEqual = 61  // = key (ASCII), grows the brush
	KeyMinus = 45  // - key (ASCII), shrinks the brush
	KeyLeft  = 263 // Left arrow (GLFW)
	KeyRight = 262 // Right arrow (GLFW)
	KeyUp    = 265 // Up arrow (GLFW)
	KeyDown  = 264 // Down arrow (GLFW)
	KeyEsc   = 256 // Escape key (GLFW)
)
