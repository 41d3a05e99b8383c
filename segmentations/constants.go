package segmentations

import "image/color"

const (
	InputWidth  = 256
	InputHeight = 256

	// MaskThreshold is exclusive: a pixel is foreground when p > 0.5.
	MaskThreshold = 0.5

	ModelName = "U-Net (ONNX)"

	DataURIPrefix = "data:image/png;base64,"
)

// OverlayColor is the translucent red painted over foreground pixels.
var OverlayColor = color.NRGBA{R: 255, G: 0, B: 0, A: 100}
