package segmentations

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Preprocess converts img to grayscale, resizes it to 256x256 and returns a
// (1, 256, 256, 1) tensor in [0,1].
func Preprocess(img image.Image) (models.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return models.Tensor{}, fmt.Errorf("empty image")
	}

	gray := imaging.Grayscale(opaque(img))
	resized := imaging.Resize(gray, InputWidth, InputHeight, imaging.CatmullRom)

	tensor := models.NewTensor(1, InputHeight, InputWidth, 1)
	for y := 0; y < InputHeight; y++ {
		row := resized.Pix[y*resized.Stride:]
		offset := y * InputWidth
		for x := 0; x < InputWidth; x++ {
			tensor.Data[offset+x] = float32(row[x*4]) / 255.0
		}
	}
	return tensor, nil
}

// opaque drops alpha without premultiplying it into the colour values.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Postprocess renders a probability mask as a red overlay on the original
// image plus a grayscale heatmap. Both images come back at the original
// image's size.
func Postprocess(original image.Image, mask models.Tensor) (models.OverlayResult, error) {
	if original == nil || original.Bounds().Empty() {
		return models.OverlayResult{}, fmt.Errorf("empty original image")
	}
	if err := mask.Validate(); err != nil {
		return models.OverlayResult{}, fmt.Errorf("invalid mask tensor: %w", err)
	}

	plane := mask.Squeeze()
	if len(plane.Shape) != 2 {
		return models.OverlayResult{}, fmt.Errorf("mask shape %v does not squeeze to (height, width)", mask.Shape)
	}
	maskHeight, maskWidth := int(plane.Shape[0]), int(plane.Shape[1])

	overlay := image.NewNRGBA(image.Rect(0, 0, maskWidth, maskHeight))
	heatmap := image.NewGray(image.Rect(0, 0, maskWidth, maskHeight))
	for y := 0; y < maskHeight; y++ {
		for x := 0; x < maskWidth; x++ {
			p := plane.Data[y*maskWidth+x]
			if p > MaskThreshold {
				overlay.SetNRGBA(x, y, OverlayColor)
			}
			heatmap.SetGray(x, y, color.Gray{Y: probabilityToGray(p)})
		}
	}

	bounds := original.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Nearest-neighbor keeps the mask edges hard.
	overlayResized := imaging.Resize(overlay, width, height, imaging.NearestNeighbor)
	combined := imaging.Overlay(imaging.Clone(original), overlayResized, image.Pt(0, 0), 1.0)
	heatmapResized := toGray(imaging.Resize(heatmap, width, height, imaging.NearestNeighbor))

	overlayURI, err := EncodeDataURI(combined)
	if err != nil {
		return models.OverlayResult{}, fmt.Errorf("encode overlay: %w", err)
	}
	heatmapURI, err := EncodeDataURI(heatmapResized)
	if err != nil {
		return models.OverlayResult{}, fmt.Errorf("encode heatmap: %w", err)
	}

	return models.OverlayResult{
		OverlayImageBase64: overlayURI,
		HeatmapImageBase64: heatmapURI,
	}, nil
}

// probabilityToGray maps p to 0..255, truncating and clamping out-of-range values.
func probabilityToGray(p float32) uint8 {
	v := float64(p) * 255
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}
