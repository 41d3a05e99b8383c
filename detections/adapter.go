package detections

import (
	"image"

	"github.com/Tutortoise/xray-analysis-service/models"
)

type Options struct {
	ConfidenceThreshold float32
	// IoUThreshold enables overlap suppression when greater than zero.
	IoUThreshold float32
}

func DefaultOptions() Options {
	return Options{ConfidenceThreshold: ConfThreshold}
}

// Adapter wires the YOLOv8 pre/post-processing into the analysis pipeline.
type Adapter struct {
	opts Options
}

func NewAdapter(opts Options) *Adapter {
	if opts.ConfidenceThreshold < 0 {
		opts.ConfidenceThreshold = ConfThreshold
	}
	return &Adapter{opts: opts}
}

func (a *Adapter) Name() string { return ModelName }

func (a *Adapter) InputShape() []int64 {
	return []int64{1, Channels, InputHeight, InputWidth}
}

func (a *Adapter) OutputShape() []int64 {
	return []int64{1, RowSize, NumAnchors}
}

func (a *Adapter) Preprocess(img image.Image) (models.Tensor, error) {
	return Preprocess(img)
}

func (a *Adapter) Postprocess(_ image.Image, output models.Tensor) (any, error) {
	boxes, err := Postprocess(output, InputWidth, InputHeight, a.opts.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	if a.opts.IoUThreshold > 0 {
		boxes = SuppressOverlaps(boxes, a.opts.IoUThreshold)
	}

	return &models.DetectionResponse{
		ModelUsed:   ModelName,
		OverlayData: boxes,
	}, nil
}
