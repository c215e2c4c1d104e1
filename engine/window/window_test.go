package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMouseButtonState(t *testing.T) {
	w := &engineWindow{}
	assert.Equal(t, MouseButton(0), w.MouseButtons())

	w.setButton(MouseButtonLeft, true)
	w.setButton(MouseButtonRight, true)
	assert.Equal(t, MouseButtonLeft|MouseButtonRight, w.MouseButtons())

	w.setButton(MouseButtonLeft, false)
	assert.Equal(t, MouseButtonRight, w.MouseButtons())

	// releasing a button that is not held is a no-op
	w.setButton(MouseButtonMiddle, false)
	assert.Equal(t, MouseButtonRight, w.MouseButtons())
}

func TestWindowOptions(t *testing.T) {
	w := &engineWindow{}
	for _, opt := range []WindowBuilderOption{WithTitle("sand"), WithWidth(800), WithHeight(600)} {
		opt(w)
	}
	assert.Equal(t, "sand", w.title)
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 600, w.Height())
}
