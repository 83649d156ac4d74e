package motion

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekkolab/vivarium/internal/sensors"
)

func solidFrame(t *testing.T, level uint8) []byte {
	t.Helper()
	data, err := sensors.EncodeSolidJPEG(320, 240, color.RGBA{R: level, G: level, B: level, A: 255})
	require.NoError(t, err)
	return data
}

func TestIdenticalFramesNoMotion(t *testing.T) {
	d := NewDetector(0.05)
	frame := solidFrame(t, 100)
	assert.False(t, d.FramesDiffer(frame, frame))
}

func TestBlackToWhiteIsMotion(t *testing.T) {
	d := NewDetector(0.05)
	black := solidFrame(t, 0)
	white := solidFrame(t, 255)
	assert.True(t, d.FramesDiffer(black, white))
}

func TestSmallDifferenceBelowDefaultSensitivity(t *testing.T) {
	// (100,100,100) vs (105,105,105): ~2% of full scale. Below the default
	// 5% threshold, above a 1% one.
	a := solidFrame(t, 100)
	b := solidFrame(t, 105)

	assert.False(t, NewDetector(0.05).FramesDiffer(a, b))
	assert.True(t, NewDetector(0.01).FramesDiffer(a, b))
}

func TestMalformedInputNeverMotionNeverPanics(t *testing.T) {
	d := NewDetector(0.05)
	valid := solidFrame(t, 50)
	garbage := []byte("definitely not a jpeg")

	assert.False(t, d.FramesDiffer(nil, nil))
	assert.False(t, d.FramesDiffer(nil, valid))
	assert.False(t, d.FramesDiffer(valid, nil))
	assert.False(t, d.FramesDiffer([]byte{}, valid))
	assert.False(t, d.FramesDiffer(garbage, valid))
	assert.False(t, d.FramesDiffer(valid, garbage))
}
