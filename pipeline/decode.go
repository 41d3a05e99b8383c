package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Decode decodes an uploaded image and applies its EXIF orientation. Failures
// are tagged with the model type the image was sent to.
func Decode(data []byte, t models.ModelType) (image.Image, error) {
	if len(data) == 0 {
		return nil, NewError(KindDecode, t, "failed to decode image", fmt.Errorf("empty upload"))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, NewError(KindDecode, t, "failed to decode image", err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, NewError(KindDecode, t, "failed to decode image", fmt.Errorf("image has zero size %dx%d", b.Dx(), b.Dy()))
	}
	return img, nil
}
