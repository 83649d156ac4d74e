// Package motion implements frame change detection and the motion-triggered
// capture pipeline.
package motion

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// compareWidth/compareHeight is the resolution frames are downsampled to
// before pixel comparison. Comparison cost is flat regardless of what the
// camera delivers, and minor sensor noise averages out.
const (
	compareWidth  = 64
	compareHeight = 48
)

// Detector compares consecutive frames and reports motion above a
// sensitivity threshold.
type Detector struct {
	sensitivity float64
}

// NewDetector creates a detector. sensitivity is the fraction of full-scale
// per-pixel difference, in (0,1], above which two frames count as motion.
func NewDetector(sensitivity float64) *Detector {
	return &Detector{sensitivity: sensitivity}
}

// FramesDiffer reports whether the two encoded frames differ beyond the
// sensitivity threshold. Nil, empty or undecodable input is treated as "no
// motion" and never returns an error: a corrupt frame from a flaky camera
// must not wedge the pipeline.
func (d *Detector) FramesDiffer(prev, curr []byte) bool {
	a := decodeAndShrink(prev)
	if a == nil {
		return false
	}
	b := decodeAndShrink(curr)
	if b == nil {
		return false
	}
	return meanAbsDiff(a, b) > d.sensitivity
}

// decodeAndShrink decodes an encoded frame and downsamples it to the
// comparison resolution. Returns nil on any decode failure.
func decodeAndShrink(data []byte) *image.RGBA {
	if len(data) == 0 {
		return nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, compareWidth, compareHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// meanAbsDiff computes the mean absolute per-channel difference between two
// equally sized RGBA images, normalized to [0,1] by the maximum channel
// value.
func meanAbsDiff(a, b *image.RGBA) float64 {
	var total int64
	var channels int64
	for y := 0; y < compareHeight; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+compareWidth*4]
		rowB := b.Pix[y*b.Stride : y*b.Stride+compareWidth*4]
		for x := 0; x < compareWidth*4; x += 4 {
			// R, G, B; alpha is always opaque after the rescale.
			for c := 0; c < 3; c++ {
				d := int64(rowA[x+c]) - int64(rowB[x+c])
				if d < 0 {
					d = -d
				}
				total += d
			}
			channels += 3
		}
	}
	if channels == 0 {
		return 0
	}
	return float64(total) / float64(channels) / 255.0
}
