package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Adapter converts between images and one network's fixed tensor interface.
type Adapter interface {
	Name() string
	InputShape() []int64
	OutputShape() []int64
	Preprocess(img image.Image) (models.Tensor, error)
	// Postprocess turns the raw output into the JSON body returned to the caller.
	Postprocess(img image.Image, output models.Tensor) (any, error)
}

// Engine runs one tensor through a loaded network.
type Engine interface {
	Run(ctx context.Context, input models.Tensor) (models.Tensor, error)
}

// Run executes preprocess, inference and postprocess for one decoded image.
// Every failure comes back as an *Error tagged with the failing stage.
func Run(ctx context.Context, m *Model, img image.Image, timings *models.ProcessingTimings) (any, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}

	var input models.Tensor
	prepStart := time.Now()
	err := guard(KindPreprocess, m.Type, "preprocess image", func() error {
		var err error
		input, err = m.Adapter.Preprocess(img)
		return err
	})
	timings.Preprocess = time.Since(prepStart)
	if err != nil {
		return nil, err
	}

	var output models.Tensor
	inferStart := time.Now()
	err = guard(KindInference, m.Type, "model inference", func() error {
		var err error
		output, err = m.Engine.Run(ctx, input)
		return err
	})
	timings.Inference = time.Since(inferStart)
	if err != nil {
		return nil, err
	}

	var result any
	postStart := time.Now()
	err = guard(KindPostprocess, m.Type, "process model output", func() error {
		var err error
		result, err = m.Adapter.Postprocess(img, output)
		return err
	})
	timings.Postprocess = time.Since(postStart)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// guard runs fn and tags any error or panic with kind.
func guard(kind Kind, t models.ModelType, message string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(kind, t, message, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(); err != nil {
		return NewError(kind, t, message, err)
	}
	return nil
}
