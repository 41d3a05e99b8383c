package segmentations

import (
	"image"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Adapter wires the U-Net pre/post-processing into the analysis pipeline.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return ModelName }

func (a *Adapter) InputShape() []int64 {
	return []int64{1, InputHeight, InputWidth, 1}
}

func (a *Adapter) OutputShape() []int64 {
	return []int64{1, InputHeight, InputWidth, 1}
}

func (a *Adapter) Preprocess(img image.Image) (models.Tensor, error) {
	return Preprocess(img)
}

func (a *Adapter) Postprocess(img image.Image, output models.Tensor) (any, error) {
	overlay, err := Postprocess(img, output)
	if err != nil {
		return nil, err
	}
	return &models.SegmentationResponse{
		ModelUsed:     ModelName,
		OverlayResult: overlay,
	}, nil
}
